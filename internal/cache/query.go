package cache

import (
	"context"
	"sync"
)

// State is a snapshot of a query. Data keeps the last good value when a
// later fetch fails.
type State[T any] struct {
	Data      T
	HasData   bool
	IsLoading bool
	Err       error
}

type QueryOption func(*queryOptions)

type queryOptions struct {
	revalidateOnMutate bool
}

// WithRevalidateOnMutate makes Mutate follow the optimistic write with a
// refetch.
func WithRevalidateOnMutate() QueryOption {
	return func(o *queryOptions) {
		o.revalidateOnMutate = true
	}
}

// Query is one subscription to a cached key.
type Query[T any] struct {
	cache *Cache
	key   Key
	e     *entry
	opts  queryOptions

	closeOnce sync.Once
	stop      func() bool
}

// UseQuery subscribes to key. When no usable value is cached the fetch
// starts right away in the background; otherwise the cached value is served
// as is. A zero key never fetches. The query is closed when ctx ends.
func UseQuery[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error), opts ...QueryOption) *Query[T] {
	q := &Query[T]{cache: c, key: key}
	for _, opt := range opts {
		opt(&q.opts)
	}

	if key.IsZero() {
		return q
	}

	c.mu.Lock()
	e := c.lookup(key)
	e.fetch = func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}
	e.refs++
	q.e = e
	c.mount(e)
	c.mu.Unlock()

	q.stop = context.AfterFunc(ctx, q.Close)

	return q
}

func (q *Query[T]) Key() Key {
	return q.key
}

func (q *Query[T]) State() State[T] {
	var st State[T]
	if q.e == nil {
		return st
	}

	q.cache.mu.Lock()
	defer q.cache.mu.Unlock()

	if v, ok := q.e.value.(T); ok && q.e.hasValue {
		st.Data, st.HasData = v, true
	}
	st.IsLoading = q.e.call != nil
	st.Err = q.e.err

	return st
}

// Wait blocks until the fetch in flight, if any, completes and returns the
// resulting data and error.
func (q *Query[T]) Wait(ctx context.Context) (T, error) {
	if q.e == nil {
		var zero T
		return zero, nil
	}

	r, err := q.cache.wait(ctx, q.e)
	if err != nil {
		var zero T
		return zero, err
	}

	return q.settle(r)
}

// Mutate replaces the cached value right away. A fetch already in flight
// will not overwrite it.
func (q *Query[T]) Mutate(ctx context.Context, value T) error {
	if q.e == nil {
		return nil
	}

	q.cache.mutate(q.e, value)

	if q.opts.revalidateOnMutate {
		_, err := q.Revalidate(ctx)
		return err
	}

	return nil
}

// Revalidate refetches the key. The request is sent only after any older
// in-flight fetch for the same key completed.
func (q *Query[T]) Revalidate(ctx context.Context) (T, error) {
	if q.e == nil {
		var zero T
		return zero, nil
	}

	r, err := q.cache.revalidate(ctx, q.e)
	if err != nil {
		var zero T
		return zero, err
	}

	return q.settle(r)
}

// Close unsubscribes. The in-flight fetch is canceled when no other query
// holds the key.
func (q *Query[T]) Close() {
	if q.e == nil {
		return
	}

	q.closeOnce.Do(func() {
		if q.stop != nil {
			q.stop()
		}

		q.cache.release(q.e)
	})
}

func (q *Query[T]) settle(r *result) (T, error) {
	st := q.State()
	if r != nil && r.canceled {
		return st.Data, r.err
	}

	return st.Data, st.Err
}
