package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/raoulx24/backup-pruner/internal/cli"
	"github.com/raoulx24/backup-pruner/internal/version"
)

// setup writes six backups of series "db" one day apart, plus an unrelated
// file, and a config keeping the newest keepLast of them.
func setup(c *qt.C, keepLast int, extra string) (cfgPath, dir string) {
	root := c.TempDir()
	dir = filepath.Join(root, "backups")
	c.Assert(os.MkdirAll(dir, 0o755), qt.IsNil)

	base := time.Now().Add(-time.Hour)
	for i := range 6 {
		p := filepath.Join(dir, fmt.Sprintf("db_%d.tar.gz", i))
		c.Assert(os.WriteFile(p, []byte("backup"), 0o644), qt.IsNil)
		mod := base.AddDate(0, 0, i-6)
		c.Assert(os.Chtimes(p, mod, mod), qt.IsNil)
	}
	c.Assert(os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644), qt.IsNil)

	cfg := fmt.Sprintf(`
logging:
  level: error
series:
  - name: db
    keepLast: %d
    store:
      kind: local
      path: %s
%s`, keepLast, dir, extra)
	cfgPath = filepath.Join(root, "config.yaml")
	c.Assert(os.WriteFile(cfgPath, []byte(cfg), 0o644), qt.IsNil)
	return cfgPath, dir
}

func execute(c *qt.C, args ...string) (string, error) {
	var out, errBuf bytes.Buffer
	cmd := cli.NewRootCmd(&out, &errBuf)
	cmd.SetArgs(args)
	_, err := cmd.ExecuteC()
	return out.String(), err
}

func remaining(c *qt.C, dir string) []string {
	entries, err := os.ReadDir(dir)
	c.Assert(err, qt.IsNil)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestVersionCmd(t *testing.T) {
	c := qt.New(t)
	out, err := execute(c, "version")
	c.Assert(err, qt.IsNil)
	c.Assert(strings.TrimSpace(out), qt.Equals, version.Version)
}

func TestPlanCmd_HasNoSideEffects(t *testing.T) {
	c := qt.New(t)
	cfg, dir := setup(c, 4, "")

	out, err := execute(c, "--config", cfg, "plan")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "db: 6 matched, 4 kept, 2 to delete (keep last 4)")
	c.Assert(out, qt.Matches, `(?s).*DELETE\s+db_1\.tar\.gz.*`)
	c.Assert(out, qt.Matches, `(?s).*KEEP\s+db_5\.tar\.gz.*last 1.*`)
	c.Assert(out, qt.Not(qt.Contains), "notes.txt")
	c.Assert(remaining(c, dir), qt.HasLen, 7)
}

func TestPruneCmd_RemovesOldBackups(t *testing.T) {
	c := qt.New(t)
	cfg, dir := setup(c, 4, "")

	out, err := execute(c, "--config", cfg, "prune")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "DELETED")
	c.Assert(remaining(c, dir), qt.DeepEquals, []string{
		"db_2.tar.gz", "db_3.tar.gz", "db_4.tar.gz", "db_5.tar.gz", "notes.txt",
	})
}

func TestPruneCmd_DryRunDoesNotDelete(t *testing.T) {
	c := qt.New(t)
	cfg, dir := setup(c, 1, "")

	out, err := execute(c, "--config", cfg, "--dry-run", "prune")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "WOULD DELETE")
	c.Assert(remaining(c, dir), qt.HasLen, 7)
}

func TestPruneCmd_UnknownSeries(t *testing.T) {
	c := qt.New(t)
	cfg, _ := setup(c, 4, "")

	_, err := execute(c, "--config", cfg, "prune", "web")
	c.Assert(err, qt.ErrorMatches, `unknown series "web"`)
}

func TestPlanCmd_InvalidConfig(t *testing.T) {
	c := qt.New(t)
	cfg, _ := setup(c, 4, "    keep:\n      days: 7\n")

	_, err := execute(c, "--config", cfg, "plan")
	c.Assert(err, qt.ErrorMatches, `(?s)invalid config: series\[0\]\.keep: .*`)
}

func TestHistoryCmd(t *testing.T) {
	c := qt.New(t)
	journalPath := filepath.Join(c.TempDir(), "journal.db")
	cfg, _ := setup(c, 4, fmt.Sprintf("journal:\n  path: %s\n", journalPath))

	_, err := execute(c, "--config", cfg, "prune")
	c.Assert(err, qt.IsNil)

	out, err := execute(c, "--config", cfg, "history", "db")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Matches, `(?s).*db\s+manual\s+6\s+4\s+2\s+0\s+false.*`)

	runID := strings.Fields(strings.Split(out, "\n")[1])[0]
	out, err = execute(c, "--config", cfg, "history", "--run", runID)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Matches, `(?s).*keep\s+db_5\.tar\.gz.*delete\s+db_0\.tar\.gz.*`)
}

func TestHistoryCmd_RequiresJournal(t *testing.T) {
	c := qt.New(t)
	cfg, _ := setup(c, 4, "")

	_, err := execute(c, "--config", cfg, "history")
	c.Assert(err, qt.ErrorMatches, `journal is not configured .*`)
}

func TestRunCmd_StopsWithContext(t *testing.T) {
	c := qt.New(t)
	cfg, _ := setup(c, 4, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out, errBuf bytes.Buffer
	cmd := cli.NewRootCmd(&out, &errBuf)
	cmd.SetArgs([]string{"--config", cfg, "run"})
	c.Assert(cmd.ExecuteContext(ctx), qt.IsNil)
}
