// Package cache keeps one in-memory collection per resource, populated by
// refreshes through the gateway.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"delegation_sync/internal/models"
)

// Fetcher loads the full contents of a cache.
type Fetcher func(ctx context.Context) ([]models.Record, error)

// Snapshot is a consistent view of a cache. Records must not be modified.
type Snapshot struct {
	Records     []models.Record
	Loading     bool
	Err         error
	RefreshedAt time.Time
}

type listener struct {
	fn    func(Snapshot)
	alive atomic.Bool
}

// Cache is a read-through projection of one server collection.
type Cache struct {
	name    string
	fetch   Fetcher
	metrics *Metrics
	log     *logrus.Entry

	mu          sync.Mutex
	records     []models.Record
	inflight    int
	err         error
	refreshedAt time.Time
	issued      uint64
	// newestSuccess is the issue number of the newest request whose
	// success has been applied. Errors from older requests are dropped.
	newestSuccess uint64
	// version counts state changes; delivered is the newest version handed
	// to listeners. Only one goroutine delivers at a time.
	version    uint64
	delivered  uint64
	delivering bool

	listeners map[int]*listener
	nextID    int
}

type Option func(*Cache)

func WithMetrics(m *Metrics) Option { return func(c *Cache) { c.metrics = m } }

func New(name string, fetch Fetcher, opts ...Option) *Cache {
	c := &Cache{
		name:      name,
		fetch:     fetch,
		listeners: make(map[int]*listener),
		log:       logrus.WithFields(logrus.Fields{"component": "cache", "cache": name}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Name() string { return c.name }

// Snapshot returns the current state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() Snapshot {
	return Snapshot{
		Records:     c.records,
		Loading:     c.inflight > 0,
		Err:         c.err,
		RefreshedAt: c.refreshedAt,
	}
}

// Records is shorthand for Snapshot().Records.
func (c *Cache) Records() []models.Record { return c.Snapshot().Records }

// Find returns the record with the given id.
func (c *Cache) Find(id string) (models.Record, bool) {
	for _, r := range c.Records() {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// Refresh reloads the cache. Concurrent refreshes all run; each success is
// applied as it completes, so the one completing last is what remains.
// An error keeps the last known good records.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.inflight++
	c.version++
	c.mu.Unlock()
	c.emit()

	start := time.Now()
	records, err := c.fetch(ctx)
	c.metrics.observe(c.name, err, time.Since(start))

	c.mu.Lock()
	c.inflight--
	switch {
	case err == nil:
		if records == nil {
			records = []models.Record{}
		}
		c.records = records
		c.err = nil
		c.refreshedAt = time.Now()
		if seq > c.newestSuccess {
			c.newestSuccess = seq
		}
	case seq > c.newestSuccess:
		c.err = err
	default:
		c.log.WithError(err).WithField("seq", seq).Debug("Dropping error from superseded refresh")
	}
	c.version++
	c.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.WithError(err).Warn("Refresh failed, keeping last known data")
	}
	c.emit()
	return err
}

// Subscribe registers fn for state changes. Deliveries never overlap and
// the last one always carries the current state; a change that lands while
// listeners are running may be folded into the next delivery. After the
// returned cancel runs, fn is never invoked again.
func (c *Cache) Subscribe(fn func(Snapshot)) (cancel func()) {
	l := &listener{fn: fn}
	l.alive.Store(true)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.mu.Unlock()

	return func() {
		l.alive.Store(false)
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// emit delivers the current state unless another goroutine is already
// delivering, in which case that goroutine picks it up.
func (c *Cache) emit() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	for c.delivered < c.version {
		c.delivered = c.version
		snap := c.snapshotLocked()
		ls := make([]*listener, 0, len(c.listeners))
		for _, l := range c.listeners {
			ls = append(ls, l)
		}
		c.mu.Unlock()
		for _, l := range ls {
			if l.alive.Load() {
				l.fn(snap)
			}
		}
		c.mu.Lock()
	}
	c.delivering = false
	c.mu.Unlock()
}
