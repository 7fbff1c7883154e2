package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amirphl/homecare-hr/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_InvalidLevelFallsBackToInfo(t *testing.T) {
	closer := Init(config.LoggingConfig{Level: "chatty", Output: "stdout"}, "development")
	defer closer.Close()

	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, Log.Formatter)
}

func TestInit_ProductionUsesJSON(t *testing.T) {
	closer := Init(config.LoggingConfig{Level: "debug", Format: "text", Output: "stdout"}, "production")
	defer closer.Close()

	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, Log.Formatter)
}

func TestInit_FileOutputRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	closer := Init(config.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: path, MaxSize: 1}, "development")

	Log.WithField("job", "nurture").Info("run finished")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"job":"nurture"`)
	assert.Contains(t, string(data), "run finished")

	Log.SetOutput(os.Stdout)
}
