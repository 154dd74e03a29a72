package app

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delegation_sync/internal/auth"
	"delegation_sync/internal/bus"
	"delegation_sync/internal/config"
	"delegation_sync/internal/fakeapi"
	"delegation_sync/internal/gateway"
	"delegation_sync/internal/models"
	"delegation_sync/internal/notify"
	"delegation_sync/internal/push"
	"delegation_sync/internal/store"
)

func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := fakeapi.New(&fakeapi.Config{
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
		AdminUser:     "admin",
		AdminPassword: "secret",
		PageSize:      50,
		Database:      config.Database{Driver: "sqlite"},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Close()
		srv.Close()
	})
	return srv
}

func testConfig(srv *httptest.Server) *config.Config {
	return &config.Config{
		APIBaseURL:           srv.URL + "/api",
		PushURL:              "ws" + strings.TrimPrefix(srv.URL, "http") + fakeapi.UpdatesPath,
		AuthScheme:           "Token",
		Username:             "admin",
		Password:             "secret",
		RequestTimeout:       5 * time.Second,
		ReconnectDelay:       50 * time.Millisecond,
		ReconnectMaxAttempts: 5,
		DebounceWindow:       20 * time.Millisecond,
	}
}

func startApp(t *testing.T, srv *httptest.Server) (*App, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	a, err := New(testConfig(srv), WithRegisterer(prometheus.NewRegistry()), WithNotifier(rec))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return a.Channel.State() == push.Connected }, 2*time.Second, 10*time.Millisecond)
	return a, rec
}

func count(a *App, t store.Target) func() int {
	return func() int { return len(a.Store.Cache(t).Records()) }
}

func TestTargetsForUnion(t *testing.T) {
	got := TargetsFor([]bus.Signal{bus.MemberChanged, bus.DelegationChanged, bus.MemberChanged})
	assert.Equal(t, []store.Target{
		store.TargetMembers, store.TargetScopedMembers, store.TargetStats, store.TargetDelegations,
	}, got)
	assert.Empty(t, TargetsFor(nil))
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
	_, err = New(&config.Config{APIBaseURL: "nope", PushURL: "http://x"})
	assert.Error(t, err)
}

func TestLocalChangesRefreshCaches(t *testing.T) {
	srv := startBackend(t)
	a, rec := startApp(t, srv)
	ctx := context.Background()

	_, err := a.Desk.Create(ctx, models.KindMainEvent, models.MainEventInput{EventName: "Summit"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return count(a, store.TargetMainEvents)() == 1 }, 2*time.Second, 10*time.Millisecond)

	var levels []notify.Level
	for _, n := range rec.Notices() {
		levels = append(levels, n.Level)
	}
	assert.Contains(t, levels, notify.Success)
}

func TestRemoteChangesArriveByPush(t *testing.T) {
	srv := startBackend(t)
	a, _ := startApp(t, srv)
	ctx := context.Background()

	// Another dashboard writes through its own session.
	other := gateway.New(gateway.Options{BaseURL: srv.URL + "/api", Timeout: 5 * time.Second}, auth.NewSession(nil, nil))
	_, err := other.Login(ctx, "admin", "secret")
	require.NoError(t, err)
	_, err = other.Create(ctx, models.KindNationality, models.LookupInput{Name: "Kenya"}.Body(models.KindNationality))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		id, ok := a.Store.ResolveLookup(models.KindNationality, "Kenya")
		return ok && id != ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeletingMainEventClearsDescendants(t *testing.T) {
	srv := startBackend(t)
	a, _ := startApp(t, srv)
	ctx := context.Background()

	main, err := a.Desk.Create(ctx, models.KindMainEvent, models.MainEventInput{EventName: "Summit"})
	require.NoError(t, err)
	sub, err := a.Desk.Create(ctx, models.KindSubEvent, models.SubEventInput{MainEventID: main.ID(), EventName: "Day 1"})
	require.NoError(t, err)
	d, err := a.Desk.Create(ctx, models.KindDelegation, models.DelegationInput{SubEventID: sub.ID(), DelegationLeaderName: "Amina", MemberCount: 2, Type: models.TypeCivilian})
	require.NoError(t, err)
	_, err = a.Desk.Create(ctx, models.KindMember, models.MemberInput{DelegationID: d.ID(), Name: "A"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return count(a, store.TargetMembers)() == 1 && count(a, store.TargetDelegations)() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Desk.DeleteMainEvent(ctx, main.ID()))
	require.Eventually(t, func() bool {
		return count(a, store.TargetMainEvents)() == 0 &&
			count(a, store.TargetSubEvents)() == 0 &&
			count(a, store.TargetDelegations)() == 0 &&
			count(a, store.TargetMembers)() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseDisconnects(t *testing.T) {
	srv := startBackend(t)
	a, err := New(testConfig(srv), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return a.Channel.State() == push.Connected }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, a.Close())
	assert.Equal(t, push.Disconnected, a.Channel.State())
}
