package server

import "time"

// RetentionServerConfig holds the deletion-scheduling configuration
type RetentionServerConfig struct {
	Delay                string `mapstructure:"delay"                 yaml:"delay"`
	ManualMode           bool   `mapstructure:"manual_mode"           yaml:"manual_mode"`
	SweepInterval        string `mapstructure:"sweep_interval"        yaml:"sweep_interval"`
	NotificationsEnabled bool   `mapstructure:"notifications_enabled" yaml:"notifications_enabled"`
}

// DelayDuration parses the deletion delay, falling back to 60s.
func (c RetentionServerConfig) DelayDuration() time.Duration {
	d, err := time.ParseDuration(c.Delay)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// SweepIntervalDuration parses the sweep interval, falling back to 5s.
func (c RetentionServerConfig) SweepIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
