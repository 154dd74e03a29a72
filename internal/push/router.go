package push

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"delegation_sync/internal/store"
)

const TypeStatsUpdate = "stats_update"

// Envelope is an inbound push message.
type Envelope struct {
	Type    string `json:"type"`
	Model   string `json:"model"`
	Action  string `json:"action"`
	ID      any    `json:"id"`
	Message string `json:"message,omitempty"`
}

var modelTargets = map[string][]store.Target{
	"MainEvent":     {store.TargetMainEvents, store.TargetStats},
	"SubEvent":      {store.TargetSubEvents, store.TargetStats},
	"Delegation":    {store.TargetDelegations, store.TargetStats},
	"Member":        {store.TargetMembers, store.TargetStats, store.TargetScopedMembers},
	"CheckOut":      {store.TargetDepartureSessions, store.TargetStats, store.TargetMembers, store.TargetDelegations, store.TargetScopedMembers, store.TargetScopedSessions},
	"Nationality":   {store.TargetNationalities, store.TargetDelegations, store.TargetMembers},
	"Cities":        {store.TargetCities, store.TargetDelegations, store.TargetMembers},
	"AirLine":       {store.TargetAirlines, store.TargetDelegations, store.TargetMembers},
	"AirPort":       {store.TargetAirports, store.TargetDelegations, store.TargetMembers},
	"EquivalentJob": {store.TargetEquivalentJobs, store.TargetMembers},
}

// Targets returns the caches to refresh for a change to model. Unknown
// models refresh the aggregate stats only.
func Targets(model string) []store.Target {
	if t, ok := modelTargets[model]; ok {
		return append([]store.Target(nil), t...)
	}
	return []store.Target{store.TargetStats}
}

// Refresher reloads caches by target.
type Refresher interface {
	Refresh(ctx context.Context, targets ...store.Target) error
}

// Router turns envelopes into cache refreshes. Refreshes run in the
// background; failures are logged only.
type Router struct {
	refresher Refresher
	timeout   time.Duration
	log       *logrus.Entry
	wg        sync.WaitGroup
}

func NewRouter(r Refresher, timeout time.Duration) *Router {
	return &Router{
		refresher: r,
		timeout:   timeout,
		log:       logrus.WithField("component", "push-router"),
	}
}

// Route starts the refreshes an envelope calls for.
func (r *Router) Route(env Envelope) {
	if env.Type != TypeStatsUpdate {
		return
	}
	targets := Targets(env.Model)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.refresher.Refresh(ctx, targets...); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{
				"model":   env.Model,
				"targets": targets,
			}).Warn("Background refresh failed")
		}
	}()
}

// Wait blocks until every started refresh has finished.
func (r *Router) Wait() { r.wg.Wait() }
