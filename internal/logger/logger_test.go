package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesToFile(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Setup(path, "debug"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	For("test").WithField("kind", "delegation").Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "component=test")
	assert.Contains(t, string(data), "kind=delegation")
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Setup("", "loud"))
}

func TestGormLoggerFollowsLevel(t *testing.T) {
	require.NoError(t, Setup("", "info"))
	assert.NotNil(t, GormLogger())
}
