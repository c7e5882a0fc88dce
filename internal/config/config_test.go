package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/raoulx24/backup-pruner/internal/retention"
)

const sample = `
logging:
  level: debug
  format: json
journal:
  path: $(PRUNER_TEST_DATA)/journal.db
watch:
  mode: poll
  pollInterval: 10s
series:
  - name: mud1316
    store:
      kind: local
      path: /srv/backups
      trashDir: .trash
    keepLast: 6
    schedule: "0 3 * * *"
  - name: mud4000
    prefix: mud4000-
    store:
      kind: s3
      bucket: backups
      region: eu-west-1
    keep:
      days: 7
      weeks: 4
      months: 12
      years: 10
`

func TestLoad(t *testing.T) {
	c := qt.New(t)
	c.Setenv("PRUNER_TEST_DATA", "/var/lib/pruner")

	path := filepath.Join(c.TempDir(), "config.yaml")
	c.Assert(os.WriteFile(path, []byte(sample), 0o600), qt.IsNil)

	cfg, err := Load(path)
	c.Assert(err, qt.IsNil)

	c.Assert(cfg.Logging.Level, qt.Equals, "debug")
	c.Assert(cfg.Journal.Path, qt.Equals, "/var/lib/pruner/journal.db")
	c.Assert(cfg.Watch.PollInterval, qt.Equals, 10*time.Second)
	c.Assert(cfg.Watch.DebounceWindow, qt.Equals, DefaultDebounceWindow)
	c.Assert(cfg.Series, qt.HasLen, 2)

	mud := cfg.Series[0]
	c.Assert(mud.Prefix, qt.Equals, "mud1316_")
	c.Assert(mud.Policy(), qt.DeepEquals, retention.KeepLast(6))

	other := cfg.Series[1]
	c.Assert(other.Prefix, qt.Equals, "mud4000-")
	c.Assert(other.KeepLast, qt.Equals, 0)
	c.Assert(other.Policy(), qt.DeepEquals, retention.KeepCalendar(retention.CalendarPolicy{Days: 7, Weeks: 4, Months: 12, Years: 10}))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	qt.Assert(t, err, qt.ErrorMatches, "reading config file: .*")
}

func TestDefaults(t *testing.T) {
	c := qt.New(t)

	cfg, err := Parse([]byte("series:\n  - name: web\n    store: {path: /b}\n"))
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Logging.Format, qt.Equals, DefaultLogFormat)
	c.Assert(cfg.Watch.Mode, qt.Equals, DefaultWatchMode)

	s := cfg.Series[0]
	c.Assert(s.Prefix, qt.Equals, "web_")
	c.Assert(s.Store.Kind, qt.Equals, StoreLocal)
	c.Assert(s.KeepLast, qt.Equals, DefaultKeepLast)
}

func TestValidateRejectsBothPolicies(t *testing.T) {
	c := qt.New(t)

	_, err := Parse([]byte(`
series:
  - name: web
    store: {path: /b}
    keepLast: 3
    keep: {days: 7}
`))
	c.Assert(err, qt.ErrorIs, retention.ErrInvalidPolicy)

	var verr ValidationError
	c.Assert(errors.As(err, &verr), qt.IsTrue)
	c.Assert(verr.Errors, qt.HasLen, 1)
	c.Assert(verr.Errors[0].Field, qt.Equals, "series[0].keep")
}

func TestValidateCollectsErrors(t *testing.T) {
	c := qt.New(t)

	_, err := Parse([]byte(`
logging: {format: xml}
watch: {mode: sometimes}
series:
  - name: a
    store: {kind: local}
    schedule: "every day"
  - name: a
    store: {kind: ftp}
  - store: {kind: s3}
`))

	var verr ValidationError
	c.Assert(errors.As(err, &verr), qt.IsTrue)

	var fields []string
	for _, fe := range verr.Errors {
		fields = append(fields, fe.Field)
	}
	c.Assert(fields, qt.DeepEquals, []string{
		"logging.format",
		"watch.mode",
		"series[0].schedule",
		"series[0].store.path",
		"series[1].name",
		"series[1].store.kind",
		"series[2].name",
		"series[2].store.bucket",
	})
}

func TestValidateRequiresSeries(t *testing.T) {
	_, err := Parse([]byte("logging: {level: info}\n"))
	qt.Assert(t, err, qt.ErrorMatches, `invalid config: series: at least one series is required`)
}

func TestLookup(t *testing.T) {
	c := qt.New(t)

	cfg := &Config{Series: []SeriesConfig{{Name: "a"}, {Name: "b"}}}

	all, err := cfg.Lookup()
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 2)

	one, err := cfg.Lookup("b")
	c.Assert(err, qt.IsNil)
	c.Assert(one[0].Name, qt.Equals, "b")

	_, err = cfg.Lookup("c")
	c.Assert(err, qt.ErrorMatches, `unknown series "c"`)
}

func TestJournalKeepDays(t *testing.T) {
	c := qt.New(t)

	cfg, err := Parse([]byte("journal: {path: j.db, keepDays: 90}\nseries:\n  - name: web\n    store: {path: /b}\n"))
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Journal.KeepDays, qt.Equals, 90)

	_, err = Parse([]byte("journal: {keepDays: -1}\nseries:\n  - name: web\n    store: {path: /b}\n"))
	c.Assert(err, qt.ErrorMatches, "invalid config: journal.keepDays: must not be negative")
}

func TestExpandEnvVars(t *testing.T) {
	c := qt.New(t)
	c.Setenv("PRUNER_BUCKET", "nightly")
	c.Setenv("PRUNER_UNSET", "")

	c.Assert(expandEnvVars("bucket: $(PRUNER_BUCKET)"), qt.Equals, "bucket: nightly")
	c.Assert(expandEnvVars("x$(PRUNER_UNSET)y"), qt.Equals, "xy")
	c.Assert(expandEnvVars("path: $HOME/${PRUNER_BUCKET}"), qt.Equals, "path: $HOME/${PRUNER_BUCKET}")
}
