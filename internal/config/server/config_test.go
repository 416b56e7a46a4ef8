package server

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	defaults := GetServerDefault()
	assert.Equal(t, defaults.ShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, defaults.Log.Level, cfg.Log.Level)
	assert.Equal(t, defaults.Metadata.SQLite.Path, cfg.Metadata.SQLite.Path)
	assert.Equal(t, defaults.Watch.Folders, cfg.Watch.Folders)
	assert.True(t, cfg.Retention.ManualMode)
	assert.True(t, cfg.Retention.NotificationsEnabled)
}

func TestRetentionDurations(t *testing.T) {
	cfg := RetentionServerConfig{Delay: "90s", SweepInterval: "2s"}
	assert.Equal(t, 90*time.Second, cfg.DelayDuration())
	assert.Equal(t, 2*time.Second, cfg.SweepIntervalDuration())
}

func TestRetentionDurationFallbacks(t *testing.T) {
	cfg := RetentionServerConfig{Delay: "not-a-duration", SweepInterval: ""}
	assert.Equal(t, 60*time.Second, cfg.DelayDuration())
	assert.Equal(t, 5*time.Second, cfg.SweepIntervalDuration())

	watch := WatchServerConfig{DebounceWindow: "-1s"}
	assert.Equal(t, 5*time.Second, watch.DebounceWindowDuration())
}
