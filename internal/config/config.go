package config

import (
	"fmt"
	"time"

	"github.com/raoulx24/backup-pruner/internal/retention"
)

type Config struct {
	Logging LoggingConfig  `yaml:"logging"`
	Journal JournalConfig  `yaml:"journal"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Watch   WatchConfig    `yaml:"watch"`
	Series  []SeriesConfig `yaml:"series"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json", "text"
}

type JournalConfig struct {
	Path     string `yaml:"path"`     // empty disables the journal
	KeepDays int    `yaml:"keepDays"` // runs older than this are trimmed; 0 keeps everything
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // e.g. ":9108"; empty disables the endpoint
}

type WatchConfig struct {
	Mode           string        `yaml:"mode"`           // "off", "auto", "poll", "fsnotify"
	PollInterval   time.Duration `yaml:"pollInterval"`   // e.g. 30s
	DebounceWindow time.Duration `yaml:"debounceWindow"` // e.g. 2s
}

// SeriesConfig describes one backup series: where it lives, which names
// belong to it and how many of them to keep.
type SeriesConfig struct {
	Name     string      `yaml:"name"`
	Prefix   string      `yaml:"prefix"`
	Store    StoreConfig `yaml:"store"`
	KeepLast int         `yaml:"keepLast"`
	Keep     KeepConfig  `yaml:"keep"`
	Schedule string      `yaml:"schedule"` // standard 5-field cron spec
	DryRun   bool        `yaml:"dryRun"`
}

type KeepConfig struct {
	Days   int `yaml:"days"`
	Weeks  int `yaml:"weeks"`
	Months int `yaml:"months"`
	Years  int `yaml:"years"`
}

func (k KeepConfig) isZero() bool {
	return k == KeepConfig{}
}

const (
	StoreLocal  = "local"
	StoreS3     = "s3"
	StoreGDrive = "gdrive"
)

type StoreConfig struct {
	Kind string `yaml:"kind"` // "local", "s3", "gdrive"

	// local
	Path     string `yaml:"path"`
	TrashDir string `yaml:"trashDir"` // relative to Path; empty deletes outright

	// s3
	Bucket    string `yaml:"bucket"`
	KeyPrefix string `yaml:"keyPrefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`

	// gdrive
	Folder          string `yaml:"folder"`
	CredentialsFile string `yaml:"credentialsFile"`
	Trash           bool   `yaml:"trash"`
}

// Policy translates the keep settings into a retention policy. Setting both
// keepLast and keep yields a policy that fails validation.
func (s SeriesConfig) Policy() retention.Policy {
	var p retention.Policy
	if s.KeepLast != 0 {
		p.Count = &retention.CountPolicy{MaxKeep: s.KeepLast}
	}
	if !s.Keep.isZero() {
		p.Calendar = &retention.CalendarPolicy{
			Days:   s.Keep.Days,
			Weeks:  s.Keep.Weeks,
			Months: s.Keep.Months,
			Years:  s.Keep.Years,
		}
	}
	return p
}

// Lookup returns the named series, or all of them when no name is given.
func (c *Config) Lookup(names ...string) ([]SeriesConfig, error) {
	if len(names) == 0 {
		return c.Series, nil
	}

	out := make([]SeriesConfig, 0, len(names))
	for _, name := range names {
		s, ok := c.find(name)
		if !ok {
			return nil, fmt.Errorf("unknown series %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Config) find(name string) (SeriesConfig, bool) {
	for _, s := range c.Series {
		if s.Name == name {
			return s, true
		}
	}
	return SeriesConfig{}, false
}
