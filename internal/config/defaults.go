package config

import "time"

const (
	DefaultKeepLast       = 4
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultWatchMode      = "off"
	DefaultPollInterval   = 30 * time.Second
	DefaultDebounceWindow = 2 * time.Second
)

// ApplyDefaults fills unset fields in place.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Watch.Mode == "" {
		cfg.Watch.Mode = DefaultWatchMode
	}
	if cfg.Watch.PollInterval == 0 {
		cfg.Watch.PollInterval = DefaultPollInterval
	}
	if cfg.Watch.DebounceWindow == 0 {
		cfg.Watch.DebounceWindow = DefaultDebounceWindow
	}

	for i := range cfg.Series {
		s := &cfg.Series[i]
		if s.Prefix == "" && s.Name != "" {
			s.Prefix = s.Name + "_"
		}
		if s.Store.Kind == "" {
			s.Store.Kind = StoreLocal
		}
		if s.KeepLast == 0 && s.Keep.isZero() {
			s.KeepLast = DefaultKeepLast
		}
	}
}
