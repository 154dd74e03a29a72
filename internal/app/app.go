// Package app wires the sync layer together: one gateway, one store, one
// bus and one push channel per process.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"delegation_sync/internal/actions"
	"delegation_sync/internal/auth"
	"delegation_sync/internal/bus"
	"delegation_sync/internal/cache"
	"delegation_sync/internal/config"
	"delegation_sync/internal/gateway"
	"delegation_sync/internal/notify"
	"delegation_sync/internal/push"
	"delegation_sync/internal/store"
)

// signalTargets lists the caches that a bus signal invalidates.
var signalTargets = map[bus.Signal][]store.Target{
	bus.DelegationChanged: {store.TargetDelegations, store.TargetStats},
	bus.DelegationDeleted: {store.TargetDelegations, store.TargetMembers, store.TargetDepartureSessions, store.TargetStats},
	bus.MemberChanged:     {store.TargetMembers, store.TargetScopedMembers, store.TargetStats},
	bus.MemberDeleted:     {store.TargetMembers, store.TargetScopedMembers, store.TargetStats},
	bus.DepartureSessionChanged: {
		store.TargetDepartureSessions, store.TargetScopedSessions, store.TargetScopedMembers, store.TargetStats,
	},
	bus.MainEventChanged: {store.TargetMainEvents, store.TargetStats},
	bus.SubEventChanged:  {store.TargetSubEvents, store.TargetStats},
	bus.LookupChanged: {
		store.TargetNationalities, store.TargetAirports, store.TargetAirlines,
		store.TargetCities, store.TargetEquivalentJobs,
	},
}

// TargetsFor returns the union of caches invalidated by signals, in a
// stable order.
func TargetsFor(signals []bus.Signal) []store.Target {
	var out []store.Target
	for _, s := range signals {
		for _, t := range signalTargets[s] {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	return out
}

type Option func(*App)

// WithRegisterer enables metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option { return func(a *App) { a.reg = reg } }

// WithNotifier sends user notices to n in addition to the log.
func WithNotifier(n notify.Notifier) Option { return func(a *App) { a.extra = n } }

// WithLoginBoundary is called when the session ends.
func WithLoginBoundary(b auth.LoginBoundary) Option { return func(a *App) { a.boundary = b } }

type App struct {
	Config   *config.Config
	Session  *auth.Session
	Gateway  *gateway.Client
	Store    *store.Store
	Bus      *bus.Bus
	Channel  *push.Channel
	Router   *push.Router
	Desk     *actions.Desk
	Notifier notify.Notifier

	reg      prometheus.Registerer
	extra    notify.Notifier
	boundary auth.LoginBoundary
	log      *logrus.Entry
	cancels  []func()
	subID    bus.SubscriberId
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, log: logrus.WithField("component", "app")}
	for _, opt := range opts {
		opt(a)
	}

	a.Notifier = notify.Fanout{notify.LogNotifier{Entry: logrus.WithField("component", "notify")}, a.extra}
	a.Session = auth.NewSession(&auth.MemoryStore{}, a.boundary)
	a.Gateway = gateway.New(gateway.Options{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.RequestTimeout,
		AuthScheme: cfg.AuthScheme,
	}, a.Session)
	a.Store = store.New(a.Gateway, cache.NewMetrics(a.reg))
	a.Bus = bus.New(cfg.DebounceWindow, a.reg, logrus.WithField("component", "bus"))
	a.Router = push.NewRouter(a.Store, cfg.RequestTimeout)
	a.Channel = push.NewChannel(push.Options{
		URL:        cfg.PushURL,
		Policy:     push.NewPolicy(cfg.ReconnectDelay, cfg.ReconnectMaxAttempts),
		Notifier:   a.Notifier,
		Registerer: a.reg,
	})
	a.Desk = actions.NewDesk(a.Gateway, a.Bus, a.Notifier, a.Store, actions.WithRole(a.Session.Role))

	a.cancels = append(a.cancels, a.Channel.OnUpdate(a.Router.Route))
	a.cancels = append(a.cancels, a.Channel.OnState(func(s push.State) {
		a.log.WithField("state", s).Info("Push channel state changed")
	}))

	all := make([]bus.Signal, 0, len(signalTargets))
	for s := range signalTargets {
		all = append(all, s)
	}
	slices.Sort(all)
	id, err := a.Bus.Subscribe(a.onSignals, all...)
	if err != nil {
		return nil, fmt.Errorf("subscribe to bus: %w", err)
	}
	a.subID = id
	return a, nil
}

func (a *App) onSignals(signals []bus.Signal) {
	targets := TargetsFor(signals)
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.RequestTimeout)
	defer cancel()
	if err := a.Store.Refresh(ctx, targets...); err != nil {
		a.log.WithError(err).WithField("signals", signals).Warn("Refresh after local change failed")
	}
}

// Start signs in when credentials are configured, loads every cache and
// opens the push channel. A failed initial load is logged; the caches keep
// their error and the channel still connects.
func (a *App) Start(ctx context.Context) error {
	if err := a.Login(ctx); err != nil {
		return err
	}
	if err := a.Store.RefreshAll(ctx); err != nil {
		a.log.WithError(err).Warn("Initial load incomplete")
	}
	if err := a.Channel.Connect(); err != nil {
		return fmt.Errorf("connect push channel: %w", err)
	}
	return nil
}

// Login begins the session from the configured token or credentials.
func (a *App) Login(ctx context.Context) error {
	switch {
	case a.Config.Token != "":
		a.Session.Begin(a.Config.Token)
	case a.Config.Username != "":
		if _, err := a.Gateway.Login(ctx, a.Config.Username, a.Config.Password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		a.log.WithField("user", a.Config.Username).Info("Signed in")
	}
	return nil
}

// Close shuts the channel, waits for background refreshes and stops the bus.
func (a *App) Close() error {
	err := a.Channel.Close()
	a.Router.Wait()
	a.Bus.Unsubscribe(a.subID)
	a.Bus.Stop()
	for _, c := range a.cancels {
		c()
	}
	a.cancels = nil
	return err
}
