package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api", cfg.APIBaseURL)
	assert.Equal(t, "ws://localhost:8000/ws/updates/", cfg.PushURL)
	assert.Equal(t, "Token", cfg.AuthScheme)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 5, cfg.ReconnectMaxAttempts)
	assert.Equal(t, 300*time.Millisecond, cfg.DebounceWindow)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DELEGATION_API_BASE_URL", "https://api.example.test/api")
	t.Setenv("DELEGATION_PUSH_URL", "wss://api.example.test/ws/updates/")
	t.Setenv("DELEGATION_RECONNECT_MAX_ATTEMPTS", "2")
	t.Setenv("DELEGATION_DEBOUNCE_WINDOW", "50ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test/api", cfg.APIBaseURL)
	assert.Equal(t, 2, cfg.ReconnectMaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.DebounceWindow)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("DELEGATION_PUSH_URL", "http://not-a-socket")
	t.Setenv("DELEGATION_RECONNECT_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid push URL")
	assert.Contains(t, err.Error(), "reconnect attempts")
}

func TestDatabaseDataSource(t *testing.T) {
	pg := Database{Driver: "postgres", Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable", TimeZone: "UTC"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5432 sslmode=disable TimeZone=UTC", pg.DataSource())

	a := Database{Driver: "sqlite"}.DataSource()
	b := Database{Driver: "sqlite"}.DataSource()
	assert.Contains(t, a, "mode=memory")
	assert.NotEqual(t, a, b)
}

func TestOpenDBSqlite(t *testing.T) {
	type item struct {
		ID   uint
		Name string
	}
	db, err := OpenDB(Database{Driver: "sqlite"}, nil, &item{})
	require.NoError(t, err)
	require.NoError(t, db.Create(&item{Name: "x"}).Error)

	var n int64
	require.NoError(t, db.Model(&item{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	_, err = OpenDB(Database{Driver: "oracle"}, nil)
	assert.Error(t, err)
}
