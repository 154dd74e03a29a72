package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"delegation_sync/internal/models"
)

type reply struct {
	records []models.Record
	err     error
}

// scriptedFetcher hands each call its own reply channel so the test
// decides completion order.
type scriptedFetcher struct {
	mu    sync.Mutex
	calls []chan reply
	ready chan struct{}
}

func newScripted() *scriptedFetcher {
	return &scriptedFetcher{ready: make(chan struct{}, 16)}
}

func (s *scriptedFetcher) fetch(ctx context.Context) ([]models.Record, error) {
	ch := make(chan reply, 1)
	s.mu.Lock()
	s.calls = append(s.calls, ch)
	s.mu.Unlock()
	s.ready <- struct{}{}
	r := <-ch
	return r.records, r.err
}

func (s *scriptedFetcher) call(i int) chan reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

func recs(ids ...string) []models.Record {
	out := make([]models.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Record(`{"id":"`+id+`"}`))
	}
	return out
}

func TestRefreshLaterCompletionWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newScripted()
	c := New("delegations", f.fetch)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = c.Refresh(context.Background()) }() // A
	<-f.ready
	go func() { defer wg.Done(); _ = c.Refresh(context.Background()) }() // B
	<-f.ready

	assert.True(t, c.Snapshot().Loading)

	f.call(1) <- reply{records: recs("b")}
	require.Eventually(t, func() bool { return len(c.Records()) == 1 }, time.Second, time.Millisecond)
	assert.True(t, c.Snapshot().Loading, "A still in flight")

	f.call(0) <- reply{records: recs("a")}
	wg.Wait()

	snap := c.Snapshot()
	assert.False(t, snap.Loading)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "a", snap.Records[0].ID())
	assert.NoError(t, snap.Err)
}

func TestRefreshErrorKeepsData(t *testing.T) {
	calls := 0
	c := New("airports", func(ctx context.Context) ([]models.Record, error) {
		calls++
		if calls == 1 {
			return recs("x", "y"), nil
		}
		return nil, errors.New("boom")
	})

	require.NoError(t, c.Refresh(context.Background()))
	first := c.Snapshot().RefreshedAt

	assert.Error(t, c.Refresh(context.Background()))
	snap := c.Snapshot()
	assert.Len(t, snap.Records, 2)
	assert.EqualError(t, snap.Err, "boom")
	assert.Equal(t, first, snap.RefreshedAt)
}

func TestErrorFromSupersededRefreshIsDropped(t *testing.T) {
	f := newScripted()
	c := New("members", f.fetch)

	done := make(chan struct{}, 2)
	go func() { _ = c.Refresh(context.Background()); done <- struct{}{} }() // A
	<-f.ready
	go func() { _ = c.Refresh(context.Background()); done <- struct{}{} }() // B
	<-f.ready

	f.call(1) <- reply{records: recs("b")}
	<-done
	f.call(0) <- reply{err: errors.New("late failure")}
	<-done

	snap := c.Snapshot()
	assert.NoError(t, snap.Err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "b", snap.Records[0].ID())
}

func TestSubscribeCancelStopsCallbacks(t *testing.T) {
	c := New("cities", func(ctx context.Context) ([]models.Record, error) { return recs("c1"), nil })

	var mu sync.Mutex
	var seen []Snapshot
	cancel := c.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	require.NoError(t, c.Refresh(context.Background()))
	mu.Lock()
	require.Len(t, seen, 2)
	assert.True(t, seen[0].Loading)
	assert.False(t, seen[1].Loading)
	assert.Len(t, seen[1].Records, 1)
	mu.Unlock()

	cancel()
	require.NoError(t, c.Refresh(context.Background()))
	mu.Lock()
	assert.Len(t, seen, 2)
	mu.Unlock()
}

func TestListenersEndOnNewestState(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newScripted()
	c := New("delegations", f.fetch)

	blocked, release := make(chan struct{}), make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var last Snapshot
	cancel := c.Subscribe(func(s Snapshot) {
		if len(s.Records) == 1 && s.Records[0].ID() == "a" {
			once.Do(func() {
				close(blocked)
				<-release
			})
		}
		mu.Lock()
		last = s
		mu.Unlock()
	})
	defer cancel()

	doneA, doneB := make(chan struct{}), make(chan struct{})
	go func() { _ = c.Refresh(context.Background()); close(doneA) }()
	<-f.ready
	go func() { _ = c.Refresh(context.Background()); close(doneB) }()
	<-f.ready

	f.call(0) <- reply{records: recs("a")}
	<-blocked
	// B completes while listeners are still handling A's result.
	f.call(1) <- reply{records: recs("b")}
	<-doneB
	assert.Equal(t, "b", c.Records()[0].ID())

	close(release)
	<-doneA

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, last.Loading)
	require.Len(t, last.Records, 1)
	assert.Equal(t, "b", last.Records[0].ID())
}

func TestFind(t *testing.T) {
	c := New("nationalities", func(ctx context.Context) ([]models.Record, error) { return recs("n1", "n2"), nil })
	_, ok := c.Find("n2")
	assert.False(t, ok)

	require.NoError(t, c.Refresh(context.Background()))
	r, ok := c.Find("n2")
	require.True(t, ok)
	assert.Equal(t, "n2", r.ID())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	fail := false
	c := New("stats", func(ctx context.Context) ([]models.Record, error) {
		if fail {
			return nil, errors.New("down")
		}
		return recs("s"), nil
	}, WithMetrics(m))

	require.NoError(t, c.Refresh(context.Background()))
	fail = true
	require.Error(t, c.Refresh(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("stats", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("stats", "error")))
	assert.Nil(t, NewMetrics(nil))
}
