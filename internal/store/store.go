// Package store owns every entity cache of the dashboard and knows how to
// refresh them by target.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"delegation_sync/internal/cache"
	"delegation_sync/internal/gateway"
	"delegation_sync/internal/models"
)

// Target names something that can be refreshed.
type Target string

const (
	TargetMainEvents        Target = "main_events"
	TargetSubEvents         Target = "sub_events"
	TargetDelegations       Target = "delegations"
	TargetMembers           Target = "members"
	TargetDepartureSessions Target = "departure_sessions"
	TargetNationalities     Target = "nationalities"
	TargetAirports          Target = "airports"
	TargetAirlines          Target = "airlines"
	TargetCities            Target = "cities"
	TargetEquivalentJobs    Target = "equivalent_jobs"
	TargetStats             Target = "stats"
	// TargetScopedMembers is the member list of the delegation the view is
	// currently scoped to. Refreshing it without a scope is a no-op.
	TargetScopedMembers Target = "scoped_members"
	// TargetScopedSessions is the departure session list of the scoped
	// delegation.
	TargetScopedSessions Target = "scoped_sessions"
)

var kindTargets = map[models.Kind]Target{
	models.KindMainEvent:        TargetMainEvents,
	models.KindSubEvent:         TargetSubEvents,
	models.KindDelegation:       TargetDelegations,
	models.KindMember:           TargetMembers,
	models.KindDepartureSession: TargetDepartureSessions,
	models.KindNationality:      TargetNationalities,
	models.KindAirport:          TargetAirports,
	models.KindAirline:          TargetAirlines,
	models.KindCity:             TargetCities,
	models.KindEquivalentJob:    TargetEquivalentJobs,
}

// TargetFor returns the collection target holding records of kind.
func TargetFor(kind models.Kind) Target { return kindTargets[kind] }

// Gateway is the part of the REST client the store reads through.
type Gateway interface {
	List(ctx context.Context, kind models.Kind, filters gateway.Filters) ([]models.Record, error)
	Stats(ctx context.Context) (models.Record, error)
}

type Store struct {
	gw      Gateway
	metrics *cache.Metrics
	log     *logrus.Entry

	caches map[Target]*cache.Cache

	mu       sync.Mutex
	scope    string
	members  map[string]*cache.Cache // per delegation
	sessions map[string]*cache.Cache // per delegation
}

func New(gw Gateway, metrics *cache.Metrics) *Store {
	s := &Store{
		gw:       gw,
		metrics:  metrics,
		log:      logrus.WithField("component", "store"),
		caches:   make(map[Target]*cache.Cache),
		members:  make(map[string]*cache.Cache),
		sessions: make(map[string]*cache.Cache),
	}
	for kind, target := range kindTargets {
		s.caches[target] = cache.New(string(target), s.listFetcher(kind, nil), cache.WithMetrics(metrics))
	}
	s.caches[TargetStats] = cache.New(string(TargetStats), func(ctx context.Context) ([]models.Record, error) {
		rec, err := s.gw.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return []models.Record{rec}, nil
	}, cache.WithMetrics(metrics))
	return s
}

func (s *Store) listFetcher(kind models.Kind, filters gateway.Filters) cache.Fetcher {
	return func(ctx context.Context) ([]models.Record, error) {
		return s.gw.List(ctx, kind, filters)
	}
}

// Cache returns the cache for a collection target, nil for unknown or
// scoped targets.
func (s *Store) Cache(t Target) *cache.Cache { return s.caches[t] }

// Kind returns the collection cache for kind.
func (s *Store) Kind(kind models.Kind) *cache.Cache { return s.caches[kindTargets[kind]] }

// Stats returns the dashboard aggregates record, nil before the first load.
func (s *Store) Stats() models.Record {
	recs := s.caches[TargetStats].Records()
	if len(recs) == 0 {
		return nil
	}
	return recs[0]
}

// DelegationMembers returns the member cache for one delegation, creating
// it on first use.
func (s *Store) DelegationMembers(delegationID string) *cache.Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.members[delegationID]
	if !ok {
		c = cache.New("members:"+delegationID,
			s.listFetcher(models.KindMember, gateway.Filters{"delegation_id": delegationID}),
			cache.WithMetrics(s.metrics))
		s.members[delegationID] = c
	}
	return c
}

// DelegationSessions returns the departure session cache for one delegation.
func (s *Store) DelegationSessions(delegationID string) *cache.Cache {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[delegationID]
	if !ok {
		c = cache.New("departure_sessions:"+delegationID,
			s.listFetcher(models.KindDepartureSession, gateway.Filters{"delegation_id": delegationID}),
			cache.WithMetrics(s.metrics))
		s.sessions[delegationID] = c
	}
	return c
}

// SetScope records the delegation the current view is scoped to; "" clears it.
func (s *Store) SetScope(delegationID string) {
	s.mu.Lock()
	s.scope = delegationID
	s.mu.Unlock()
}

func (s *Store) Scope() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Refresh reloads the given targets concurrently and returns the first
// error. A failing cache does not cancel its siblings. An unknown target
// fails the call before any cache is touched.
func (s *Store) Refresh(ctx context.Context, targets ...Target) error {
	s.log.WithField("targets", targets).Debug("Refreshing caches")
	seen := make(map[*cache.Cache]bool, len(targets))
	caches := make([]*cache.Cache, 0, len(targets))
	for _, t := range targets {
		c, err := s.resolve(t)
		if err != nil {
			return err
		}
		if c == nil || seen[c] {
			continue
		}
		seen[c] = true
		caches = append(caches, c)
	}

	var g errgroup.Group
	for _, c := range caches {
		g.Go(func() error {
			if err := c.Refresh(ctx); err != nil {
				return fmt.Errorf("refresh %s: %w", c.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Store) resolve(t Target) (*cache.Cache, error) {
	switch t {
	case TargetScopedMembers, TargetScopedSessions:
		scope := s.Scope()
		if scope == "" {
			return nil, nil
		}
		if t == TargetScopedMembers {
			return s.DelegationMembers(scope), nil
		}
		return s.DelegationSessions(scope), nil
	}
	c, ok := s.caches[t]
	if !ok {
		return nil, fmt.Errorf("unknown refresh target %q", t)
	}
	return c, nil
}

// AllTargets lists every collection plus stats.
func AllTargets() []Target {
	out := make([]Target, 0, len(kindTargets)+3)
	for _, k := range models.Kinds() {
		out = append(out, kindTargets[k])
	}
	return append(out, TargetStats, TargetScopedMembers, TargetScopedSessions)
}

// RefreshAll loads every cache.
func (s *Store) RefreshAll(ctx context.Context) error {
	return s.Refresh(ctx, AllTargets()...)
}

// ResolveLookup finds the id of the lookup record named name, compared
// case-insensitively.
func (s *Store) ResolveLookup(kind models.Kind, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || !kind.IsLookup() {
		return "", false
	}
	for _, r := range s.Kind(kind).Records() {
		if strings.EqualFold(strings.TrimSpace(r.String(kind.NameField())), name) {
			return r.ID(), true
		}
	}
	return "", false
}

// LookupNameTaken reports whether another lookup of kind already uses name.
func (s *Store) LookupNameTaken(kind models.Kind, name, exceptID string) bool {
	id, ok := s.ResolveLookup(kind, name)
	return ok && id != exceptID
}
