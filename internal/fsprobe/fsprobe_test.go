package fsprobe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestProbeLocalDir(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()

	res := Probe(context.Background(), dir, 2*time.Second)
	c.Assert(res, qt.DeepEquals, Result{FsnotifySupported: true})

	// Probe files are cleaned up.
	entries, err := os.ReadDir(dir)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 0)
}

func TestProbeMissingDir(t *testing.T) {
	c := qt.New(t)
	res := Probe(context.Background(), filepath.Join(c.TempDir(), "nope"), 0)
	c.Assert(res.FsnotifySupported, qt.IsFalse)
	c.Assert(res.Reason, qt.Matches, "stat failed: .*")
}

func TestProbeNotADirectory(t *testing.T) {
	c := qt.New(t)
	f := filepath.Join(c.TempDir(), "file")
	c.Assert(os.WriteFile(f, nil, 0o644), qt.IsNil)

	res := Probe(context.Background(), f, 0)
	c.Assert(res, qt.DeepEquals, Result{Reason: "not a directory"})
}
