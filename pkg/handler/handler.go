// Package handler compiles and dispatches a node's "set handler" (§4.3 Step
// E): the source text attached to template.set. The engine's original host
// scripting dialect is swapped for the embedded expression runtime
// expr-lang/expr, the pluggable-handler-runtime substitution the dataflow
// design notes explicitly sanction, provided the eleven positional parameters
// and the this-as-context contract survive the swap.
//
// expr-lang expressions have no assignment statements, so the edges
// write-side-effect ("edges.out = value") becomes an explicit method call,
// again per the design notes' fallback for languages without property
// setters: edges.Write("out", value).
package handler

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// WriteFunc performs one output-edge write and its connector fan-out,
// returning the value as the expression's Write() result once fan-out has
// been sequenced (§4.3 Step C).
type WriteFunc func(field string, value interface{}) (interface{}, error)

// Edges is the handler environment's edges object. Its Write method is the
// only mutator a compiled handler can call.
type Edges struct {
	write WriteFunc
}

// NewEdges wraps write as an Edges value for a single handler invocation.
func NewEdges(write WriteFunc) *Edges {
	return &Edges{write: write}
}

// Write assigns value to the named output edge, triggering fan-out to every
// connector on that edge, sequentially, in declared order.
func (e *Edges) Write(field string, value interface{}) (interface{}, error) {
	if e == nil || e.write == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEdges, field)
	}
	return e.write(field, value)
}

// RequireFunc resolves a module name the way the host's native
// module-resolution facility would (§4.3 Step E "a module-require shim").
type RequireFunc func(module string) (interface{}, error)

// Environment holds the eleven positional parameters plus the `this` context
// value a compiled handler is invoked with.
type Environment struct {
	Scheduler  interface{}
	Graph      interface{}
	Cache      interface{}
	Vector     interface{}
	Field      string
	State      interface{}
	Value      interface{}
	Edges      *Edges
	Data       interface{}
	Properties interface{}
	Require    RequireFunc

	// This is the context value a "set" listener may have rebound via
	// setContext before the handler body ran.
	This interface{}
}

func (e *Environment) toMap() map[string]interface{} {
	return map[string]interface{}{
		"scheduler":  e.Scheduler,
		"graph":      e.Graph,
		"cache":      e.Cache,
		"vector":     e.Vector,
		"field":      e.Field,
		"state":      e.State,
		"value":      e.Value,
		"edges":      e.Edges,
		"data":       e.Data,
		"properties": e.Properties,
		"require": func(module string) (interface{}, error) {
			if e.Require == nil {
				return nil, fmt.Errorf("%w: %s", ErrNoRequire, module)
			}
			return e.Require(module)
		},
		"this":       e.This,
	}
}

// Compiler caches compiled handler programs by source text, mirroring the
// program-cache-by-source pattern the expression engine this package
// replaces already used.
type Compiler struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
}

// NewCompiler creates an empty Compiler.
func NewCompiler() *Compiler {
	return &Compiler{cache: make(map[string]*vm.Program)}
}

// Compile parses source into a cached, reusable program.
func (c *Compiler) Compile(source string) (*vm.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if program, ok := c.cache[source]; ok {
		return program, nil
	}

	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompileFailed, err)
	}
	c.cache[source] = program
	return program, nil
}

// Dispatch compiles source (via c, reusing a cached program when available)
// and runs it against env, binding This for the duration of the call.
func Dispatch(c *Compiler, source string, env *Environment) (interface{}, error) {
	program, err := c.Compile(source)
	if err != nil {
		return nil, err
	}

	out, err := expr.Run(program, env.toMap())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandlerThrew, err)
	}
	return out, nil
}
