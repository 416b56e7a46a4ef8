package server

import "time"

// WatchServerConfig holds the watched-folder configuration
type WatchServerConfig struct {
	Folders        []string `mapstructure:"folders"         yaml:"folders"`
	DebounceWindow string   `mapstructure:"debounce_window" yaml:"debounce_window"`
}

// DebounceWindowDuration parses the dedup window, falling back to 5s.
func (c WatchServerConfig) DebounceWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.DebounceWindow)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
