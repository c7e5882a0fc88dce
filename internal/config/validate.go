package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError is a validation failure for one config field.
type FieldError struct {
	Field string // dotted path, e.g. "series[0].store.path"
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }

// ValidationError collects every field error found in a config.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid config: " + e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid config: %d errors:", len(e.Errors))
	for _, fe := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(fe.Error())
	}
	return sb.String()
}

func (e ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, fe := range e.Errors {
		errs[i] = fe
	}
	return errs
}

// Validate checks cfg and returns a ValidationError listing every problem.
func Validate(cfg *Config) error {
	var errs []FieldError
	add := func(field string, err error) {
		errs = append(errs, FieldError{Field: field, Err: err})
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level", fmt.Errorf("unknown level %q", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		add("logging.format", fmt.Errorf("unknown format %q", cfg.Logging.Format))
	}

	if cfg.Journal.KeepDays < 0 {
		add("journal.keepDays", errors.New("must not be negative"))
	}

	switch cfg.Watch.Mode {
	case "off", "auto", "poll", "fsnotify":
	default:
		add("watch.mode", fmt.Errorf("unknown mode %q", cfg.Watch.Mode))
	}
	if cfg.Watch.PollInterval < 0 {
		add("watch.pollInterval", errors.New("must not be negative"))
	}
	if cfg.Watch.DebounceWindow < 0 {
		add("watch.debounceWindow", errors.New("must not be negative"))
	}

	if len(cfg.Series) == 0 {
		add("series", errors.New("at least one series is required"))
	}

	seen := map[string]bool{}
	for i, s := range cfg.Series {
		field := fmt.Sprintf("series[%d]", i)

		if s.Name == "" {
			add(field+".name", errors.New("required"))
		} else if seen[s.Name] {
			add(field+".name", fmt.Errorf("duplicate series %q", s.Name))
		}
		seen[s.Name] = true

		if err := s.Policy().Validate(); err != nil {
			add(field+".keep", err)
		}

		if s.Schedule != "" {
			if _, err := cron.ParseStandard(s.Schedule); err != nil {
				add(field+".schedule", fmt.Errorf("invalid cron schedule %q: %w", s.Schedule, err))
			}
		}

		errs = append(errs, validateStore(field+".store", s.Store)...)
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateStore(field string, sc StoreConfig) []FieldError {
	var errs []FieldError
	required := func(name, value string) {
		if value == "" {
			errs = append(errs, FieldError{Field: field + "." + name, Err: fmt.Errorf("required for %s store", sc.Kind)})
		}
	}

	switch sc.Kind {
	case StoreLocal:
		required("path", sc.Path)
		if strings.Contains(sc.TrashDir, "..") {
			errs = append(errs, FieldError{Field: field + ".trashDir", Err: errors.New("must stay inside path")})
		}
	case StoreS3:
		required("bucket", sc.Bucket)
	case StoreGDrive:
		required("folder", sc.Folder)
	default:
		errs = append(errs, FieldError{Field: field + ".kind", Err: fmt.Errorf("unknown store kind %q", sc.Kind)})
	}
	return errs
}
