package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const DefaultDedupInterval = 2 * time.Second

var (
	ErrClosed = errors.New("cache closed")
	// ErrNoFetcher is returned when a key is fetched before any query mounted it.
	ErrNoFetcher = errors.New("no fetcher for key")
)

// Cache holds the last known value for every Key and owns the in-flight
// request for each of them. At most one fetch per key runs at a time.
type Cache struct {
	mu      sync.Mutex
	group   singleflight.Group
	entries map[string]*entry

	window  time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

type entry struct {
	key   Key
	fetch func(ctx context.Context) (any, error)

	value    any
	hasValue bool
	err      error
	stale    bool

	startedAt time.Time
	gen       uint64
	// results of fetches with gen <= floor are discarded
	floor uint64
	call  *flight
	refs  int
}

// flight is the handle of one in-flight fetch.
type flight struct {
	gen    uint64
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	fetch  func(ctx context.Context) (any, error)
}

type result struct {
	gen      uint64
	value    any
	err      error
	canceled bool
}

type Option func(*Cache)

// WithDedupInterval sets how long a finished fetch is reused by new readers.
func WithDedupInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.window = d
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(logger *slog.Logger, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Cache{
		entries: make(map[string]*entry),
		window:  DefaultDedupInterval,
		now:     time.Now,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Invalidate marks every key under resource stale and refetches the ones
// that still have subscribers. It returns once those refetches finished,
// with the first fetch error if any.
func (c *Cache) Invalidate(ctx context.Context, resource string) error {
	return c.InvalidateFunc(ctx, func(k Key) bool { return k.Under(resource) })
}

func (c *Cache) InvalidateFunc(ctx context.Context, match func(Key) bool) error {
	c.mu.Lock()
	var active []*entry
	for _, e := range c.entries {
		if !match(e.key) {
			continue
		}

		e.stale = true
		if e.refs > 0 {
			active = append(active, e)
		}
	}
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range active {
		g.Go(func() error {
			r, err := c.revalidate(gctx, e)
			if err != nil {
				return err
			}

			return r.err
		})
	}

	return g.Wait()
}

// Clear drops every cached value and cancels in-flight fetches. Live
// queries stay mounted and refetch on their next Revalidate.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, e := range c.entries {
		if e.call != nil {
			e.call.cancel()
		}

		e.floor = e.gen
		e.value, e.hasValue, e.err = nil, false, nil
		e.stale = true
		e.startedAt = time.Time{}

		if e.refs == 0 {
			delete(c.entries, id)
		}
	}

	c.logger.Debug("Cache cleared")
}

// Close cancels all in-flight work. Fetches started afterwards fail with
// ErrClosed.
func (c *Cache) Close() {
	c.cancel()
}

// lookup returns the entry for key, creating it. c.mu must be held.
func (c *Cache) lookup(key Key) *entry {
	id := key.String()

	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: key}
		c.entries[id] = e
	}

	return e
}

// mount starts a fetch for a newly subscribed query unless a fresh value,
// an in-flight fetch or a result inside the dedup window can serve it.
// c.mu must be held.
func (c *Cache) mount(e *entry) {
	switch {
	case e.call != nil:
		c.metrics.record(resultDedup)
	case e.hasValue && !e.stale:
		c.metrics.record(resultHit)
	case !e.stale && !e.startedAt.IsZero() && c.now().Sub(e.startedAt) < c.window:
		c.metrics.record(resultDedup)
	default:
		c.metrics.record(resultMiss)
		c.start(e)
	}
}

// start launches a new fetch for e and returns its result channel.
// c.mu must be held and e.call must be nil.
func (c *Cache) start(e *entry) <-chan singleflight.Result {
	e.gen++
	ctx, cancel := context.WithCancel(c.ctx)

	f := &flight{
		gen:    e.gen,
		id:     e.key.String() + "#" + strconv.FormatUint(e.gen, 10),
		ctx:    ctx,
		cancel: cancel,
		fetch:  e.fetch,
	}

	e.call = f
	e.startedAt = c.now()

	c.logger.Debug("Cache fetch", slog.String("key", e.key.String()), slog.Uint64("gen", f.gen))

	return c.group.DoChan(f.id, func() (any, error) {
		return c.run(e, f), nil
	})
}

// join returns the result channel of the fetch currently in flight for e.
// c.mu must be held and e.call must be set.
func (c *Cache) join(e *entry) <-chan singleflight.Result {
	f := e.call

	return c.group.DoChan(f.id, func() (any, error) {
		return c.run(e, f), nil
	})
}

func (c *Cache) run(e *entry, f *flight) *result {
	var (
		value any
		err   error
	)

	switch {
	case c.ctx.Err() != nil:
		err = ErrClosed
	case f.fetch == nil:
		err = ErrNoFetcher
	default:
		value, err = f.fetch(f.ctx)
	}

	canceled := f.ctx.Err() != nil
	f.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e.call == f {
		e.call = nil
	}

	switch {
	case canceled:
	case f.gen <= e.floor:
		c.logger.Debug("Cache dropped superseded result", slog.String("key", e.key.String()))
	case err != nil:
		e.err = err
	default:
		e.value, e.hasValue, e.err = value, true, nil
		e.stale = false
	}

	return &result{gen: f.gen, value: value, err: err, canceled: canceled}
}

// await blocks on the current fetch of e, starting one if none is running,
// until a fetch with generation >= minGen completes.
func (c *Cache) await(ctx context.Context, e *entry, minGen uint64) (*result, error) {
	for {
		c.mu.Lock()
		var ch <-chan singleflight.Result
		if e.call != nil {
			ch = c.join(e)
		} else {
			ch = c.start(e)
		}
		c.mu.Unlock()

		select {
		case res := <-ch:
			r := res.Val.(*result)
			if r.gen >= minGen {
				return r, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// revalidate issues a fetch that starts after any older in-flight one has
// finished, so a refetch requested after a write observes that write.
func (c *Cache) revalidate(ctx context.Context, e *entry) (*result, error) {
	c.mu.Lock()
	minGen := e.gen + 1
	c.mu.Unlock()

	return c.await(ctx, e, minGen)
}

// wait joins the in-flight fetch of e if there is one.
func (c *Cache) wait(ctx context.Context, e *entry) (*result, error) {
	c.mu.Lock()
	if e.call == nil {
		c.mu.Unlock()
		return nil, nil
	}
	ch := c.join(e)
	c.mu.Unlock()

	select {
	case res := <-ch:
		return res.Val.(*result), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Set stores value under key as if a query had mutated it. Mounted queries
// see it on their next State.
func (c *Cache) Set(key Key, value any) {
	if key.IsZero() {
		return
	}

	c.mu.Lock()
	e := c.lookup(key)
	c.mu.Unlock()

	c.mutate(e, value)
}

func (c *Cache) mutate(e *entry, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.floor = e.gen
	e.value, e.hasValue, e.err = value, true, nil
	e.stale = false
}

func (c *Cache) release(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.refs--
	if e.refs > 0 {
		return
	}

	if e.call != nil {
		c.logger.Debug("Cache fetch canceled", slog.String("key", e.key.String()))
		e.call.cancel()
	}
}
