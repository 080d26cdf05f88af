package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/orc/compiler"
	"github.com/chazu/orc/config"
	"github.com/chazu/orc/engine"
	"github.com/chazu/orc/statsdb"
)

const testOrc = `
sr = 100
ksmps = 10

instr 1
a1 line 0, p3, 1
out a1
endin
`

func writeFile(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScoreSegments(t *testing.T) {
	score, err := engine.ReadScore("i1 0 1\ns\ni1 0 1\ni1 1 1\ns\ne\n")
	if err != nil {
		t.Fatal(err)
	}
	segs := scoreSegments(score.Events())
	if len(segs) != 2 || len(segs[0]) != 1 || len(segs[1]) != 2 {
		t.Fatalf("segments = %v", segs)
	}
}

func TestCheckAll(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.orc", testOrc)
	bad := writeFile(t, dir, "bad.orc", "instr 1\nk1 nosuch 1\nendin\n")
	missing := filepath.Join(dir, "missing.orc")

	if got := checkAll([]string{good, bad, missing, good}, compiler.Options{}); got != 2 {
		t.Errorf("failed = %d, want 2", got)
	}
}

func TestCheckAllUsesRateOverrides(t *testing.T) {
	dir := t.TempDir()
	orc := writeFile(t, dir, "rates.orc", "sr = 100\nkr = 3\nksmps = 10\n\ninstr 1\na1 line 0, p3, 1\nout a1\nendin\n")

	if got := checkAll([]string{orc}, compiler.Options{}); got != 1 {
		t.Errorf("inconsistent header rates: failed = %d, want 1", got)
	}
	cfg := config.Default()
	cfg.Rates.Kr = 10
	if got := checkAll([]string{orc}, cfg.CompilerOptions()); got != 0 {
		t.Errorf("with kr override: failed = %d, want 0", got)
	}
}

func TestExecute(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Output.StatsDB = filepath.Join(dir, "stats.db")
	cfg.Output.LayoutDump = filepath.Join(dir, "layout.cbor")

	r := &run{
		cfg: cfg,
		orc: writeFile(t, dir, "test.orc", testOrc),
		sco: writeFile(t, dir, "test.sco", "i1 0 1\ns\ni1 0 0.5\ne\n"),
	}
	if err := r.execute(t.Context()); err != nil {
		t.Fatal(err)
	}

	if fi, err := os.Stat(cfg.Output.LayoutDump); err != nil || fi.Size() == 0 {
		t.Errorf("layout dump: %v", err)
	}

	db, err := statsdb.Open(cfg.Output.StatsDB)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ids, err := db.Runs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("%d runs recorded", len(ids))
	}
	saved, err := db.LoadRun(ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if saved.Fingerprint != r.fingerprint || saved.Stats.Notes != 2 || len(saved.Stats.Sections) != 2 {
		t.Errorf("saved run = %+v", saved)
	}
}

func TestExecuteNeedsScore(t *testing.T) {
	dir := t.TempDir()
	r := &run{cfg: config.Default(), orc: writeFile(t, dir, "test.orc", testOrc)}
	if err := r.execute(t.Context()); err == nil {
		t.Error("performed without a score")
	}
}
