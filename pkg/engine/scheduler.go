// Package engine implements the dataflow engine's execution substrate: the
// Scheduler (§4.5), Edge Executor (§4.4), and Node Executor (§4.3), built on
// pkg/eventbus, pkg/loader, pkg/handler, pkg/graph, and pkg/state.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vectorflow/vectorflow/pkg/config"
	"github.com/vectorflow/vectorflow/pkg/eventbus"
	"github.com/vectorflow/vectorflow/pkg/handler"
	"github.com/vectorflow/vectorflow/pkg/loader"
	"github.com/vectorflow/vectorflow/pkg/logging"
	"github.com/vectorflow/vectorflow/pkg/state"
	"github.com/vectorflow/vectorflow/pkg/types"
)

// Default URL templates (§4.2 "URL templating"), mutable per Scheduler
// instance via SetGraphPath/SetVectorPath.
const (
	DefaultGraphPath  = "artifacts/graph/{id}.{version}"
	DefaultVectorPath = "artifacts/vectors/{id}.{version}"
)

// Scheduler is the engine's top-level entry point (§4.5). It owns the base
// graph, the handler's `this` context, shared state, per-node caches, the
// two artifact loaders, and the event bus.
type Scheduler struct {
	baseGraph *types.Graph

	context interface{}
	state   *state.Map
	cache   *state.VectorCache

	graphLoader *loader.Loader[*types.Graph]
	nodeLoader  *loader.Loader[*types.Node]

	graphPath  string
	vectorPath string

	bus      *eventbus.Bus
	compiler *handler.Compiler
	cfg      *config.Config
	logger   *logging.Logger
	require  handler.RequireFunc

	traversal   uint64
	noFetchFlag bool

	graphSchema string
	nodeSchema  string

	// traversals tracks the depth/fanout circuit breakers per in-flight
	// traversal ID (config.Config.MaxGraphDepth, MaxConnectorFanout).
	traversals sync.Map
}

// traversalLimits is the running depth/fanout count for one Url() call,
// consulted by writeEdge's fan-out loop.
type traversalLimits struct {
	depth  int
	fanout int
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithContext sets the initial handler `this` context (default: an empty map).
func WithContext(ctx interface{}) Option {
	return func(s *Scheduler) { s.context = ctx }
}

// WithState seeds the Scheduler's shared mutable state.
func WithState(initial map[string]interface{}) Option {
	return func(s *Scheduler) { s.state = state.NewMap(initial) }
}

// WithLogger overrides the Scheduler's structured logger (default: a
// logging.Logger writing JSON to stdout at info level).
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfig overrides the execution-limit and network-ACL configuration
// used to build the default HTTP fetch primitive.
func WithConfig(cfg *config.Config) Option {
	return func(s *Scheduler) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithRequire installs a module-require shim forwarding to the host's
// native module-resolution facility (§4.3 Step E).
func WithRequire(fn handler.RequireFunc) Option {
	return func(s *Scheduler) { s.require = fn }
}

// WithoutFetch disables the default network fetch primitive: both loaders
// are constructed with fetch=nil, so any Load that misses the cache and the
// "load" event override fails with the "fetch unavailable" error kind (§7
// case 4).
func WithoutFetch() Option {
	return func(s *Scheduler) { s.noFetchFlag = true }
}

// WithGraphSchema supplies the JSON-Schema document every fetched graph
// artifact must conform to. It only takes effect when the Scheduler is
// built with a Config whose ValidateArtifactSchema is true (§1 AMBIENT
// STACK); otherwise it is ignored, matching the loader's documented
// no-validation-by-default behavior.
func WithGraphSchema(schema string) Option {
	return func(s *Scheduler) { s.graphSchema = schema }
}

// WithNodeSchema supplies the JSON-Schema document every fetched node
// artifact must conform to, under the same ValidateArtifactSchema gate as
// WithGraphSchema.
func WithNodeSchema(schema string) Option {
	return func(s *Scheduler) { s.nodeSchema = schema }
}

// New constructs a Scheduler over graph. graph must be non-nil; a nil graph
// fails with ErrNilGraph (§7 case 1). New also fails when the configured
// fetch primitive cannot be built (the Config does not validate) or when a
// schema supplied via WithGraphSchema/WithNodeSchema does not compile.
func New(graph *types.Graph, opts ...Option) (*Scheduler, error) {
	if graph == nil {
		return nil, ErrNilGraph
	}

	s := &Scheduler{
		baseGraph:  graph,
		context:    map[string]interface{}{},
		state:      state.NewMap(nil),
		cache:      state.NewVectorCache(),
		graphPath:  DefaultGraphPath,
		vectorPath: DefaultVectorPath,
		bus:        eventbus.New(),
		compiler:   handler.NewCompiler(),
		cfg:        config.Default(),
		logger:     logging.New(logging.DefaultConfig()),
		require:    defaultRequire,
	}

	for _, opt := range opts {
		opt(s)
	}

	var graphFetch, nodeFetch loader.FetchFunc
	if !s.noFetchFlag {
		fetch, err := loader.NewHTTPFetcher(s.cfg)
		if err != nil {
			return nil, err
		}
		graphFetch = fetch
		nodeFetch = fetch
	}

	s.graphLoader = loader.New[*types.Graph](s.bus, graphFetch, types.ParseGraph)
	s.nodeLoader = loader.New[*types.Node](s.bus, nodeFetch, types.ParseNode)

	if s.cfg.ValidateArtifactSchema {
		if s.graphSchema != "" {
			v, err := loader.NewSchemaValidator(s.graphSchema)
			if err != nil {
				return nil, err
			}
			s.graphLoader.WithSchema(v)
		}
		if s.nodeSchema != "" {
			v, err := loader.NewSchemaValidator(s.nodeSchema)
			if err != nil {
				return nil, err
			}
			s.nodeLoader.WithSchema(v)
		}
	}

	return s, nil
}

func defaultRequire(module string) (interface{}, error) {
	return nil, fmt.Errorf("vectorflow/engine: module %q not available: no require shim configured", module)
}

// AddEventListener registers fn for events named name (§4.1).
func (s *Scheduler) AddEventListener(name eventbus.Name, fn eventbus.Listener) {
	s.bus.AddEventListener(name, fn)
}

// RemoveEventListener removes a previously registered listener.
func (s *Scheduler) RemoveEventListener(name eventbus.Name, fn eventbus.Listener) {
	s.bus.RemoveEventListener(name, fn)
}

// SetGraphPath overrides the Scheduler's graph URL template.
func (s *Scheduler) SetGraphPath(tmpl string) { s.graphPath = tmpl }

// SetVectorPath overrides the Scheduler's node URL template.
func (s *Scheduler) SetVectorPath(tmpl string) { s.vectorPath = tmpl }

// GraphLoader exposes the graph artifact loader, primarily for ClearCache.
func (s *Scheduler) GraphLoader() *loader.Loader[*types.Graph] { return s.graphLoader }

// NodeLoader exposes the node artifact loader, primarily for ClearCache.
func (s *Scheduler) NodeLoader() *loader.Loader[*types.Node] { return s.nodeLoader }

// State returns the Scheduler's shared mutable state map.
func (s *Scheduler) State() *state.Map { return s.state }

// EventBus exposes the Scheduler's event bus, for observers (e.g.
// pkg/telemetry) that attach their own listener sets.
func (s *Scheduler) EventBus() *eventbus.Bus { return s.bus }

// Context returns the current handler `this` context.
func (s *Scheduler) Context() interface{} { return s.context }

func (s *Scheduler) renderGraphPath(id string, version int) string {
	return renderTemplate(s.graphPath, id, version)
}

func (s *Scheduler) renderVectorPath(id string, version int) string {
	return renderTemplate(s.vectorPath, id, version)
}

var templatePlaceholder = regexp.MustCompile(`\{id\}|\{version\}`)

func renderTemplate(tmpl, id string, version int) string {
	return templatePlaceholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		switch m {
		case "{id}":
			return id
		case "{version}":
			return fmt.Sprintf("%d", version)
		default:
			return m
		}
	})
}

// traversalLimitsFor returns the shared depth/fanout counters for id,
// creating them on first use.
func (s *Scheduler) traversalLimitsFor(id string) *traversalLimits {
	v, _ := s.traversals.LoadOrStore(id, &traversalLimits{})
	return v.(*traversalLimits)
}

func (s *Scheduler) endTraversal(id string) {
	s.traversals.Delete(id)
}

func (s *Scheduler) nextTraversalID() string {
	n := atomic.AddUint64(&s.traversal, 1)
	b := make([]byte, 4)
	if _, err := rand.Read(b); err == nil {
		return fmt.Sprintf("t-%d-%s", n, hex.EncodeToString(b))
	}
	return fmt.Sprintf("t-%d", n)
}

// Url is the Scheduler's top-level entry point (§4.5): it regex-matches
// pattern against every node's url field in the currently selected graph,
// then drives the Edge Executor at the first match. A miss emits a warning,
// never an error, and Url always resolves without returning an error —
// every failure during a traversal is reported only as an event.
func (s *Scheduler) Url(ctx context.Context, pattern string, value interface{}, field string, currentVector *types.Node) error {
	start := time.Now()
	s.bus.DispatchEvent(eventbus.Begin, eventbus.Event{URL: pattern})

	if s.cfg.MaxExecutionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.MaxExecutionTime)
		defer cancel()
	}

	searchGraph := s.baseGraph
	if currentVector != nil && currentVector.LinkedGraph != nil && currentVector.LinkedGraph.Graph != nil {
		searchGraph = currentVector.LinkedGraph.Graph
	}

	matched := s.findNode(searchGraph, pattern)
	if matched == nil {
		if pattern != "" {
			s.bus.DispatchEvent(eventbus.Warning, eventbus.Event{URL: pattern, Message: ErrURLMissMessage})
		}
		s.bus.DispatchEvent(eventbus.End, eventbus.Event{URL: pattern, Duration: time.Since(start)})
		return nil
	}

	traversalID := s.nextTraversalID()
	defer s.endTraversal(traversalID)
	s.edgeExecutor(ctx, traversalID, searchGraph, matched, field, value)

	s.bus.DispatchEvent(eventbus.End, eventbus.Event{URL: pattern, Duration: time.Since(start)})
	return nil
}

var urlFolder = cases.Fold(cases.Compact, language.Und)

// findNode regex-matches pattern against every node's url, case-exactly
// first; a unicode case-folded retry (via golang.org/x/text/cases) catches
// URLs that differ only by case, letting an author write "^/Sports$" and
// match a vector whose url uses a different case convention.
func (s *Scheduler) findNode(g *types.Graph, pattern string) *types.Node {
	if g == nil || pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	for _, n := range g.Nodes {
		if re.MatchString(n.URL) {
			return n
		}
	}

	foldedRe, err := regexp.Compile(urlFolder.String(pattern))
	if err != nil {
		return nil
	}
	for _, n := range g.Nodes {
		if foldedRe.MatchString(urlFolder.String(n.URL)) {
			return n
		}
	}
	return nil
}
