// Package loader implements the engine's Artifact Loader (§4.2): a
// URL-keyed cache over an artifact type, with an event-driven override path
// that takes precedence over the network fetch fallback.
package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/vectorflow/vectorflow/pkg/eventbus"
)

// FetchFunc retrieves the raw bytes of the artifact at url.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// ParseFunc decodes raw artifact bytes into a T.
type ParseFunc[T any] func(data []byte) (T, error)

// Loader is generic over the artifact type it caches: the Scheduler owns
// one Loader[*types.Graph] and one Loader[*types.Node].
type Loader[T any] struct {
	mu    sync.Mutex
	cache map[string]T

	bus      *eventbus.Bus
	fetch    FetchFunc
	parse    ParseFunc[T]
	validate *SchemaValidator
}

// New creates a Loader. fetch may be nil, in which case Load fails with
// ErrFetchUndefined for any URL not satisfied by cache or event override.
func New[T any](bus *eventbus.Bus, fetch FetchFunc, parse ParseFunc[T]) *Loader[T] {
	return &Loader[T]{
		cache: make(map[string]T),
		bus:   bus,
		fetch: fetch,
		parse: parse,
	}
}

// Load resolves url to an artifact, following the §4.2 precedence: event
// override, then cache, then fetch. A URL is fetched at most once per
// Loader instance between ClearCache calls.
func (l *Loader[T]) Load(ctx context.Context, url string) (T, error) {
	var zero T

	var override T
	var overridden bool
	if l.bus != nil {
		l.bus.DispatchEvent(eventbus.Load, eventbus.Event{
			URL: url,
			SetValue: func(artifact interface{}) {
				if v, ok := artifact.(T); ok {
					override = v
					overridden = true
				}
			},
		})
	}

	if overridden {
		l.mu.Lock()
		l.cache[url] = override
		l.mu.Unlock()
		return override, nil
	}

	l.mu.Lock()
	if v, ok := l.cache[url]; ok {
		l.mu.Unlock()
		return v, nil
	}
	l.mu.Unlock()

	if l.fetch == nil {
		err := fmt.Errorf("%w: %s", ErrFetchUndefined, url)
		l.emitError(url, err)
		return zero, err
	}

	raw, err := l.fetch(ctx, url)
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, err)
		l.emitError(url, wrapped)
		return zero, wrapped
	}

	if l.validate != nil {
		if err := l.validate.Validate(raw); err != nil {
			wrapped := fmt.Errorf("%s: %w", url, err)
			l.emitError(url, wrapped)
			return zero, wrapped
		}
	}

	artifact, err := l.parse(raw)
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %v", ErrParseFailed, url, err)
		l.emitError(url, wrapped)
		return zero, wrapped
	}

	l.mu.Lock()
	l.cache[url] = artifact
	l.mu.Unlock()
	return artifact, nil
}

func (l *Loader[T]) emitError(url string, err error) {
	if l.bus == nil {
		return
	}
	l.bus.DispatchEvent(eventbus.Error, eventbus.Event{URL: url, Err: err, Message: err.Error()})
}

// ClearCache drops every cached entry; the next Load for any URL refetches.
func (l *Loader[T]) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]T)
}

// Peek returns the cached value for url without triggering a load event or
// fetch, for inspection by tests and diagnostics.
func (l *Loader[T]) Peek(url string) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.cache[url]
	return v, ok
}
