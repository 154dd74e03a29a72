package table

import (
	"slices"
	"sync"

	"delegation_sync/internal/cache"
)

// View keeps a filtered, sorted row set in step with its source caches.
type View[R any] struct {
	project func() []R
	cols    []Column[R]

	mu        sync.Mutex
	query     Query
	rows      []R
	listeners []func([]R)
	cancels   []func()
	closed    bool
	dirty     bool
	running   bool
}

// NewView builds rows with project whenever one of the sources changes.
// project reads the caches itself so it can join across them.
func NewView[R any](project func() []R, cols []Column[R], sources ...*cache.Cache) *View[R] {
	v := &View[R]{project: project, cols: cols}
	v.recompute()
	for _, src := range sources {
		v.cancels = append(v.cancels, src.Subscribe(func(s cache.Snapshot) {
			if !s.Loading {
				v.recompute()
			}
		}))
	}
	return v
}

// SetQuery changes the filters and sort. An invalid query leaves the
// previous one in place.
func (v *View[R]) SetQuery(q Query) error {
	if _, err := Apply(nil, v.cols, q); err != nil {
		return err
	}
	v.mu.Lock()
	v.query = q
	v.mu.Unlock()
	v.recompute()
	return nil
}

func (v *View[R]) Rows() []R {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rows
}

// OnChange registers fn for every recomputation.
func (v *View[R]) OnChange(fn func([]R)) {
	v.mu.Lock()
	v.listeners = append(v.listeners, fn)
	v.mu.Unlock()
}

// Close detaches the view; no state changes or callbacks happen afterwards.
func (v *View[R]) Close() {
	v.mu.Lock()
	v.closed = true
	cancels := v.cancels
	v.cancels = nil
	v.listeners = nil
	v.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// recompute rebuilds the rows. Calls that arrive while a rebuild is in
// flight mark the view dirty and return; the running call loops until the
// rows reflect the latest cache contents and query.
func (v *View[R]) recompute() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.dirty = true
	if v.running {
		v.mu.Unlock()
		return
	}
	v.running = true
	for v.dirty && !v.closed {
		v.dirty = false
		q := v.query
		v.mu.Unlock()

		rows, err := Apply(v.project(), v.cols, q)

		v.mu.Lock()
		if err != nil || v.closed {
			continue
		}
		v.rows = rows
		listeners := slices.Clone(v.listeners)
		v.mu.Unlock()
		for _, fn := range listeners {
			fn(rows)
		}
		v.mu.Lock()
	}
	v.running = false
	v.mu.Unlock()
}
