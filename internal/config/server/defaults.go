package server

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Metadata: MetadataServerConfig{
			Type: "sqlite",
			SQLite: MetadataSQLiteConfig{
				Path: "snapify.db",
			},
		},

		Watch: WatchServerConfig{
			Folders:        []string{defaultScreenshotsFolder()},
			DebounceWindow: "5s",
		},

		Retention: RetentionServerConfig{
			Delay:                "60s",
			ManualMode:           true,
			SweepInterval:        "5s",
			NotificationsEnabled: true,
		},
	}
}

func defaultScreenshotsFolder() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Screenshots"
	}
	return filepath.Join(home, "Pictures", "Screenshots")
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)

	viper.SetDefault("watch.folders", defaults.Watch.Folders)
	viper.SetDefault("watch.debounce_window", defaults.Watch.DebounceWindow)

	viper.SetDefault("retention.delay", defaults.Retention.Delay)
	viper.SetDefault("retention.manual_mode", defaults.Retention.ManualMode)
	viper.SetDefault("retention.sweep_interval", defaults.Retention.SweepInterval)
	viper.SetDefault("retention.notifications_enabled", defaults.Retention.NotificationsEnabled)
}
