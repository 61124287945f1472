package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(opts ...Option) *Cache {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

// counter returns a fetcher that counts calls and yields "v<n>".
func counter(calls *atomic.Int32) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		n := calls.Add(1)
		return fmt.Sprintf("v%d", n), nil
	}
}

func TestKey_String(t *testing.T) {
	tests := []struct {
		name     string
		key      Key
		expected string
	}{
		{
			name:     "no params",
			key:      NewKey("/attendances/current/today"),
			expected: "/attendances/current/today",
		},
		{
			name:     "params sorted by name",
			key:      NewKey("/employees").With("page", "2").With("limit", "10"),
			expected: "/employees?limit=10&page=2",
		},
		{
			name:     "empty values skipped",
			key:      NewKey("/attendances/employee/7").With("startDate", "").With("page", "1"),
			expected: "/attendances/employee/7?page=1",
		},
		{
			name:     "values escaped",
			key:      NewKey("/employees").With("q", "a&b"),
			expected: "/employees?q=a%26b",
		},
		{
			name:     "zero key",
			key:      Key{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.key.String())
		})
	}
}

func TestKey_WithDoesNotShareParams(t *testing.T) {
	base := NewKey("/employees").With("limit", "10")
	p1 := base.With("page", "1")
	p2 := base.With("page", "2")

	assert.Equal(t, "/employees?limit=10", base.String())
	assert.Equal(t, "/employees?limit=10&page=1", p1.String())
	assert.Equal(t, "/employees?limit=10&page=2", p2.String())
	assert.Equal(t, "2", p2.Query().Get("page"))
}

func TestKey_Under(t *testing.T) {
	assert.True(t, NewKey("/employees").Under("/employees"))
	assert.True(t, NewKey("/attendances/employee/7").Under("/attendances/employee/"))
	assert.False(t, NewKey("/employees-archive").Under("/employees"))
	assert.False(t, NewKey("/attendances").Under("/attendances/employee"))
}

func TestUseQuery_TwoReadsWithinWindowFetchOnce(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	var calls atomic.Int32
	key := NewKey("/employees").With("page", "1").With("limit", "10")

	q1 := UseQuery(context.Background(), c, key, counter(&calls))
	q2 := UseQuery(context.Background(), c, key, counter(&calls))
	defer q1.Close()
	defer q2.Close()

	v1, err := q1.Wait(context.Background())
	require.NoError(t, err)
	v2, err := q2.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "v1", v1)
	assert.Equal(t, "v1", v2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUseQuery_ConcurrentMountsShareOneRequest(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	var calls atomic.Int32
	gate := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-gate
		return "shared", nil
	}

	key := NewKey("/employees")

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := UseQuery(context.Background(), c, key, fetch)
			defer q.Close()
			results[i], _ = q.Wait(context.Background())
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestUseQuery_ConcurrentMountRevalidateClose(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	key := NewKey("/employees")

	var (
		wg    sync.WaitGroup
		calls atomic.Int32
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			q := UseQuery(context.Background(), c, key, counter(&calls))
			defer q.Close()

			v, err := q.Revalidate(context.Background())
			assert.NoError(t, err)
			assert.NotEmpty(t, v)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestUseQuery_StaleWhileRevalidate(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	var calls atomic.Int32
	key := NewKey("/employees")

	q1 := UseQuery(context.Background(), c, key, counter(&calls))
	_, err := q1.Wait(context.Background())
	require.NoError(t, err)
	q1.Close()

	q2 := UseQuery(context.Background(), c, key, counter(&calls))
	defer q2.Close()

	st := q2.State()
	assert.True(t, st.HasData)
	assert.False(t, st.IsLoading)
	assert.Equal(t, "v1", st.Data)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUseQuery_ErrorReusedInsideWindowOnly(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	c := newTestCache(WithClock(clock.Now), WithDedupInterval(2*time.Second))
	defer c.Close()

	errBoom := errors.New("boom")
	var calls atomic.Int32
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		return "", errBoom
	}

	key := NewKey("/attendances/current/today")

	q1 := UseQuery(context.Background(), c, key, fetch)
	_, err := q1.Wait(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, q1.State().Err, errBoom)

	clock.Advance(time.Second)
	q2 := UseQuery(context.Background(), c, key, fetch)
	_, err = q2.Wait(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(2 * time.Second)
	q3 := UseQuery(context.Background(), c, key, fetch)
	_, _ = q3.Wait(context.Background())
	assert.Equal(t, int32(2), calls.Load())

	q1.Close()
	q2.Close()
	q3.Close()
}

func TestUseQuery_ErrorKeepsStaleData(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	errBoom := errors.New("boom")
	var calls atomic.Int32
	fetch := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "good", nil
		}
		return "", errBoom
	}

	q := UseQuery(context.Background(), c, NewKey("/employees"), fetch)
	defer q.Close()

	_, err := q.Wait(context.Background())
	require.NoError(t, err)

	data, err := q.Revalidate(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "good", data)

	st := q.State()
	assert.True(t, st.HasData)
	assert.ErrorIs(t, st.Err, errBoom)
}

func TestUseQuery_ZeroKeyNeverFetches(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	var calls atomic.Int32
	q := UseQuery(context.Background(), c, Key{}, counter(&calls))
	defer q.Close()

	v, err := q.Wait(context.Background())
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = q.Revalidate(context.Background())
	require.NoError(t, err)
	require.NoError(t, q.Mutate(context.Background(), "x"))

	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, q.State().HasData)
}

func TestQuery_Mutate(t *testing.T) {
	tests := []struct {
		name          string
		opts          []QueryOption
		expectedData  string
		expectedCalls int32
	}{
		{
			name:          "optimistic write without refetch",
			expectedData:  "local",
			expectedCalls: 1,
		},
		{
			name:          "revalidate on mutate",
			opts:          []QueryOption{WithRevalidateOnMutate()},
			expectedData:  "v2",
			expectedCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache()
			defer c.Close()

			var calls atomic.Int32
			q := UseQuery(context.Background(), c, NewKey("/attendances/current/today"), counter(&calls), tt.opts...)
			defer q.Close()

			_, err := q.Wait(context.Background())
			require.NoError(t, err)

			require.NoError(t, q.Mutate(context.Background(), "local"))

			assert.Equal(t, tt.expectedData, q.State().Data)
			assert.Equal(t, tt.expectedCalls, calls.Load())
		})
	}
}

func TestQuery_MutateWinsOverOlderFetch(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	gate := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		<-gate
		return "server", nil
	}

	q := UseQuery(context.Background(), c, NewKey("/attendances/current/today"), fetch)
	defer q.Close()

	require.NoError(t, q.Mutate(context.Background(), "local"))
	close(gate)

	_, err := q.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local", q.State().Data)
}

func TestQuery_RevalidateWaitsForOlderFetch(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	gate := make(chan struct{})
	var calls, active, maxActive atomic.Int32
	fetch := func(context.Context) (string, error) {
		n := calls.Add(1)
		cur := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if cur <= m || maxActive.CompareAndSwap(m, cur) {
				break
			}
		}

		if n == 1 {
			<-gate
		}
		return fmt.Sprintf("v%d", n), nil
	}

	q := UseQuery(context.Background(), c, NewKey("/employees"), fetch)
	defer q.Close()

	done := make(chan string, 1)
	go func() {
		v, _ := q.Revalidate(context.Background())
		done <- v
	}()

	assert.Never(t, func() bool { return calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	close(gate)

	select {
	case v := <-done:
		assert.Equal(t, "v2", v)
	case <-time.After(time.Second):
		t.Fatal("revalidate did not finish")
	}

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), maxActive.Load())
	assert.Equal(t, "v2", q.State().Data)
}

func TestQuery_CloseCancelsInFlightFetch(t *testing.T) {
	tests := []struct {
		name     string
		teardown func(q *Query[string], cancel context.CancelFunc)
	}{
		{
			name:     "explicit close",
			teardown: func(q *Query[string], _ context.CancelFunc) { q.Close() },
		},
		{
			name:     "context canceled",
			teardown: func(_ *Query[string], cancel context.CancelFunc) { cancel() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache()
			defer c.Close()

			started := make(chan struct{})
			canceled := make(chan struct{})
			fetch := func(ctx context.Context) (string, error) {
				close(started)
				<-ctx.Done()
				close(canceled)
				return "", ctx.Err()
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			q := UseQuery(ctx, c, NewKey("/employees"), fetch)
			<-started
			tt.teardown(q, cancel)

			select {
			case <-canceled:
			case <-time.After(time.Second):
				t.Fatal("fetch was not canceled")
			}

			assert.Eventually(t, func() bool { return !q.State().IsLoading }, time.Second, 5*time.Millisecond)
			assert.NoError(t, q.State().Err)
		})
	}
}

func TestQuery_CloseKeepsFetchForOtherSubscribers(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	gate := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		select {
		case <-gate:
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	key := NewKey("/employees")
	q1 := UseQuery(context.Background(), c, key, fetch)
	q2 := UseQuery(context.Background(), c, key, fetch)
	defer q2.Close()

	q1.Close()
	close(gate)

	v, err := q2.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestCache_Invalidate(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	var empCalls, attCalls atomic.Int32
	emp := UseQuery(context.Background(), c, NewKey("/employees").With("page", "1"), counter(&empCalls))
	att := UseQuery(context.Background(), c, NewKey("/attendances/current/today"), counter(&attCalls))
	defer emp.Close()
	defer att.Close()

	_, err := emp.Wait(context.Background())
	require.NoError(t, err)
	_, err = att.Wait(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(context.Background(), "/employees"))

	assert.Equal(t, int32(2), empCalls.Load())
	assert.Equal(t, "v2", emp.State().Data)
	assert.Equal(t, int32(1), attCalls.Load())
}

func TestCache_InvalidateUnsubscribedRefetchesOnMount(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	var calls atomic.Int32
	key := NewKey("/employees")

	q := UseQuery(context.Background(), c, key, counter(&calls))
	_, err := q.Wait(context.Background())
	require.NoError(t, err)
	q.Close()

	require.NoError(t, c.Invalidate(context.Background(), "/employees"))
	assert.Equal(t, int32(1), calls.Load())

	q = UseQuery(context.Background(), c, key, counter(&calls))
	defer q.Close()

	v, err := q.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache()
	defer c.Close()

	var calls atomic.Int32
	q := UseQuery(context.Background(), c, NewKey("/attendances/current/today"), counter(&calls))
	defer q.Close()

	_, err := q.Wait(context.Background())
	require.NoError(t, err)

	c.Clear()
	assert.False(t, q.State().HasData)

	v, err := q.Revalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestCache_Closed(t *testing.T) {
	c := newTestCache()
	c.Close()

	var calls atomic.Int32
	q := UseQuery(context.Background(), c, NewKey("/employees"), counter(&calls))
	defer q.Close()

	_, err := q.Revalidate(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, int32(0), calls.Load())
}

func TestCache_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	c := newTestCache(WithMetrics(m))
	defer c.Close()

	var calls atomic.Int32
	key := NewKey("/employees")

	q1 := UseQuery(context.Background(), c, key, counter(&calls))
	_, err := q1.Wait(context.Background())
	require.NoError(t, err)

	q2 := UseQuery(context.Background(), c, key, counter(&calls))
	q1.Close()
	q2.Close()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.lookups.WithLabelValues(resultMiss)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.lookups.WithLabelValues(resultHit)))
}
