// Package bus is the in-process signal bus that tells sibling views to
// re-fetch after a local mutation.
package bus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const DefaultWindow = 300 * time.Millisecond

// Signal names a kind of change. Signals carry no payload; listeners
// re-fetch.
type Signal string

const (
	DelegationChanged       Signal = "delegation.changed"
	DelegationDeleted       Signal = "delegation.deleted"
	MemberChanged           Signal = "member.changed"
	MemberDeleted           Signal = "member.deleted"
	DepartureSessionChanged Signal = "departure_session.changed"
	MainEventChanged        Signal = "main_event.changed"
	SubEventChanged         Signal = "sub_event.changed"
	LookupChanged           Signal = "lookup.changed"
)

var vocabulary = map[Signal]bool{
	DelegationChanged:       true,
	DelegationDeleted:       true,
	MemberChanged:           true,
	MemberDeleted:           true,
	DepartureSessionChanged: true,
	MainEventChanged:        true,
	SubEventChanged:         true,
	LookupChanged:           true,
}

func (s Signal) Valid() bool { return vocabulary[s] }

var (
	ErrUnknownSignal = errors.New("unknown signal")
	ErrStopped       = errors.New("bus stopped")
)

type SubscriberId int

// Handler receives the signals coalesced into one delivery.
type Handler func(signals []Signal)

type Bus struct {
	window  time.Duration
	metrics *busMetrics
	Logger  *logrus.Entry

	mu        sync.RWMutex
	subs      map[Signal]map[SubscriberId]*subscription
	lastSubId SubscriberId
	stopped   bool
}

// New creates a bus whose subscriptions debounce over window.
func New(window time.Duration, promRegistry prometheus.Registerer, logger *logrus.Entry) *Bus {
	if logger == nil {
		logger = logrus.WithField("component", "bus")
	}
	b := &Bus{
		window: window,
		subs:   make(map[Signal]map[SubscriberId]*subscription),
		Logger: logger,
	}
	if promRegistry != nil {
		b.metrics = newBusMetrics(promRegistry)
	}
	return b
}

// Subscribe registers fn for one or more signals. Emissions of any of them
// within the window collapse into a single call.
func (b *Bus) Subscribe(fn Handler, signals ...Signal) (SubscriberId, error) {
	if len(signals) == 0 {
		return 0, errors.New("subscribe needs at least one signal")
	}
	for _, s := range signals {
		if !s.Valid() {
			return 0, fmt.Errorf("%w: %q", ErrUnknownSignal, s)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return 0, ErrStopped
	}
	b.lastSubId++
	id := b.lastSubId
	sub := &subscription{id: id, fn: fn, window: b.window, bus: b, signals: signals}
	for _, s := range signals {
		if b.subs[s] == nil {
			b.subs[s] = make(map[SubscriberId]*subscription)
		}
		b.subs[s][id] = sub
	}
	return id, nil
}

// Unsubscribe stops delivery; a pending debounced call is discarded.
func (b *Bus) Unsubscribe(id SubscriberId) {
	b.mu.Lock()
	var found *subscription
	for s, subs := range b.subs {
		if sub, ok := subs[id]; ok {
			found = sub
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subs, s)
			}
		}
	}
	b.mu.Unlock()
	if found != nil {
		found.close()
	}
}

// Emit publishes a signal to its subscribers.
func (b *Bus) Emit(signal Signal) error {
	if !signal.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSignal, signal)
	}
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return ErrStopped
	}
	subs := make([]*subscription, 0, len(b.subs[signal]))
	for _, sub := range b.subs[signal] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	b.metrics.emitted(signal)
	b.Logger.WithField("signal", signal).Debug("Signal emitted")
	for _, sub := range subs {
		sub.push(signal)
	}
	return nil
}

// Stop discards every subscription and pending delivery.
func (b *Bus) Stop() {
	b.mu.Lock()
	b.stopped = true
	all := make(map[SubscriberId]*subscription)
	for _, subs := range b.subs {
		for id, sub := range subs {
			all[id] = sub
		}
	}
	b.subs = make(map[Signal]map[SubscriberId]*subscription)
	b.mu.Unlock()
	for _, sub := range all {
		sub.close()
	}
}

type subscription struct {
	id      SubscriberId
	fn      Handler
	window  time.Duration
	bus     *Bus
	signals []Signal

	mu      sync.Mutex
	timer   *time.Timer
	pending []Signal
	count   int
	closed  bool
}

func (s *subscription) push(sig Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.count++
	if !containsSignal(s.pending, sig) {
		s.pending = append(s.pending, sig)
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.window, s.fire)
		return
	}
	s.timer.Reset(s.window)
}

func (s *subscription) fire() {
	s.mu.Lock()
	if s.closed || s.count == 0 {
		s.mu.Unlock()
		return
	}
	signals, count := s.pending, s.count
	s.pending, s.count = nil, 0
	s.timer = nil
	s.mu.Unlock()

	s.bus.metrics.delivered(count)
	defer func() {
		if r := recover(); r != nil {
			s.bus.Logger.WithFields(logrus.Fields{
				"subscriber": s.id,
				"panic":      r,
			}).Error("Signal handler panicked")
		}
	}()
	s.fn(signals)
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
}

func containsSignal(list []Signal, s Signal) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
