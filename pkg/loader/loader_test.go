package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/vectorflow/vectorflow/pkg/eventbus"
)

func identityParse(data []byte) (string, error) {
	return string(data), nil
}

func TestLoadFetchesOnceThenUsesCache(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, url string) ([]byte, error) {
		calls++
		return []byte("payload"), nil
	}
	l := New[string](eventbus.New(), fetch, identityParse)

	for i := 0; i < 2; i++ {
		v, err := l.Load(context.Background(), "artifacts/graph/g1.0")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "payload" {
			t.Fatalf("expected payload, got %q", v)
		}
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 fetch, got %d", calls)
	}
}

func TestClearCacheCausesRefetch(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, url string) ([]byte, error) {
		calls++
		return []byte("payload"), nil
	}
	l := New[string](eventbus.New(), fetch, identityParse)

	l.Load(context.Background(), "u")
	l.Load(context.Background(), "u")
	l.ClearCache()
	l.Load(context.Background(), "u")

	if calls != 2 {
		t.Fatalf("expected 2 fetches after one ClearCache, got %d", calls)
	}
}

func TestLoadEventOverrideTakesPrecedenceOverFetch(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, url string) ([]byte, error) {
		calls++
		return []byte("from-network"), nil
	}
	bus := eventbus.New()
	bus.AddEventListener(eventbus.Load, func(e eventbus.Event) {
		e.SetValue("from-override")
	})
	l := New[string](bus, fetch, identityParse)

	v, err := l.Load(context.Background(), "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "from-override" {
		t.Fatalf("expected override value, got %q", v)
	}
	if calls != 0 {
		t.Fatalf("expected fetch to be skipped, got %d calls", calls)
	}
}

func TestLoadWithNilFetchEmitsErrorAndFails(t *testing.T) {
	bus := eventbus.New()
	var gotErr error
	bus.AddEventListener(eventbus.Error, func(e eventbus.Event) { gotErr = e.Err })

	l := New[string](bus, nil, identityParse)
	_, err := l.Load(context.Background(), "u")

	if !errors.Is(err, ErrFetchUndefined) {
		t.Fatalf("expected ErrFetchUndefined, got %v", err)
	}
	if gotErr == nil {
		t.Fatal("expected error event to be emitted")
	}
}

func TestLoadPropagatesFetchFailure(t *testing.T) {
	fetch := func(ctx context.Context, url string) ([]byte, error) {
		return nil, errors.New("boom")
	}
	l := New[string](eventbus.New(), fetch, identityParse)

	_, err := l.Load(context.Background(), "u")
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestPeekDoesNotTriggerLoadEvent(t *testing.T) {
	bus := eventbus.New()
	triggered := false
	bus.AddEventListener(eventbus.Load, func(eventbus.Event) { triggered = true })

	l := New[string](bus, nil, identityParse)
	if _, ok := l.Peek("u"); ok {
		t.Fatal("expected empty cache")
	}
	if triggered {
		t.Fatal("expected Peek to not dispatch a load event")
	}
}
