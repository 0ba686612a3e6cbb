package flowutil

import (
	"context"

	"github.com/0xVanfer/tg-flow/flow"
)

// GetOrFetch returns the value cached in flow data under key, calling fetch and caching
// its result on a miss. Errors are not cached.
func GetOrFetch[T any](ctx context.Context, s *flow.State, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := s.Get(key); ok {
		if cached, ok := v.(T); ok {
			return cached, nil
		}
	}
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	s.Set(key, v)
	return v, nil
}

// Invalidate drops cached keys so the next GetOrFetch fetches again.
func Invalidate(s *flow.State, keys ...string) {
	if len(keys) == 0 {
		return
	}
	s.Clear(keys...)
}
