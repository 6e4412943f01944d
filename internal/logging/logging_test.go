package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repograph/internal/config"
)

func TestInitFileOutput(t *testing.T) {
	t.Cleanup(func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetFormatter(&logrus.TextFormatter{})
	})
	path := filepath.Join(t.TempDir(), "repograph.log")

	closer := Init(config.LoggingConfig{Level: "debug", Format: "json", Output: path})
	logrus.WithField("repo", "acme/widgets").Debug("indexed")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"repo":"acme/widgets"`)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}

func TestInitInvalidLevel(t *testing.T) {
	t.Cleanup(func() { logrus.SetLevel(logrus.InfoLevel) })

	closer := Init(config.LoggingConfig{Level: "loud", Output: "stderr"})
	defer closer.Close()
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
