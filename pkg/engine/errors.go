package engine

import "errors"

// The eight error kinds from §7. Only ErrNilGraph is ever returned
// synchronously (construction); the other kinds are only ever emitted as an
// "error" event — the engine never throws past a node boundary.
// ErrFetchUnavailable itself is not emitted by this package: a missing fetch
// primitive surfaces as loader.ErrFetchUndefined, emitted by the loader and
// again wrapped in ErrLinkedNodeResolution or ErrLinkedGraphResolution.
var (
	ErrNilGraph              = errors.New("vectorflow/engine: graph is required")
	ErrLinkedNodeResolution  = errors.New("vectorflow/engine: linked node resolved to nil")
	ErrLinkedGraphResolution = errors.New("vectorflow/engine: linked graph resolved to nil")
	ErrDanglingConnector     = errors.New("vectorflow/engine: connector target vector not found")
	ErrFetchUnavailable      = errors.New("vectorflow/engine: fetch is not defined")
	ErrTemplateMissing       = errors.New("vectorflow/engine: no template for set found")
	ErrHandlerThrew          = errors.New("vectorflow/engine: handler threw")
	ErrEdgeSetterError       = errors.New("vectorflow/engine: edge setter error")
)

// The circuit breakers config.Config.MaxGraphDepth and MaxConnectorFanout
// add (§1 AMBIENT STACK): soft bounds on a single traversal, not part of
// the original error taxonomy above. Both default to 0 (unlimited), so
// they never fire unless a caller opts into a ceiling.
var (
	ErrMaxGraphDepthExceeded = errors.New("vectorflow/engine: traversal exceeded max graph depth")
	ErrMaxFanoutExceeded     = errors.New("vectorflow/engine: edge exceeded max connector fanout")
)

// ErrURLMissMessage is the exact warning text emitted when url() finds no
// matching node (§8 scenario 1). It is not an error value: a miss is never
// an error condition, only a warning event.
const ErrURLMissMessage = "Cannot find vector at the specified URL."
