package types

import "errors"

// Sentinel errors for the core data model.
var (
	ErrNilGraph          = errors.New("vectorflow/types: graph is nil")
	ErrConnectorDangling = errors.New("vectorflow/types: connector target vector not found")
	ErrLinkedNodeNil     = errors.New("vectorflow/types: linked node resolved to nil")
	ErrLinkedGraphNil    = errors.New("vectorflow/types: linked graph resolved to nil")
)
