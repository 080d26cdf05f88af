package statsdb

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/orc/engine"
	"github.com/google/uuid"
)

func testRun() Run {
	id := uuid.New()
	return Run{
		ID:          id,
		Orchestra:   "test.orc",
		Fingerprint: "abc123",
		FinishedAt:  time.Unix(1700000000, 0),
		Stats: engine.Stats{
			RunID:         id,
			Cycles:        200,
			Notes:         4,
			MaxActive:     2,
			Allocations:   2,
			Reuses:        2,
			PerfErrors:    1,
			InitErrors:    1,
			ExtraNoteOffs: 3,
			MaxAmp:        []float64{0.9, 0.4},
			OutOfRange:    []int64{0, 7},
			Sections: []engine.SectionStats{
				{Number: 1, Cycles: 100, MaxAmp: []float64{0.9, 0.1}, OutOfRange: []int64{0, 0}},
				{Number: 2, Cycles: 100, MaxAmp: []float64{0.2, 0.4}, OutOfRange: []int64{0, 7}, PerfErrors: 1},
			},
		},
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	r := testRun()
	if err := db.SaveRun(r); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadRun(r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Orchestra != r.Orchestra || got.Fingerprint != r.Fingerprint || !got.FinishedAt.Equal(r.FinishedAt) {
		t.Errorf("run = %+v", got)
	}
	st := got.Stats
	if st.Cycles != 200 || st.Notes != 4 || st.Reuses != 2 || st.ExtraNoteOffs != 3 || st.InitErrors != 1 {
		t.Errorf("counters = %+v", st)
	}
	if len(st.MaxAmp) != 2 || st.MaxAmp[0] != 0.9 || st.OutOfRange[1] != 7 {
		t.Errorf("overall amps %v %v", st.MaxAmp, st.OutOfRange)
	}
	if len(st.Sections) != 2 {
		t.Fatalf("%d sections", len(st.Sections))
	}
	sec := st.Sections[1]
	if sec.Number != 2 || sec.PerfErrors != 1 || sec.MaxAmp[1] != 0.4 || sec.OutOfRange[1] != 7 {
		t.Errorf("section 2 = %+v", sec)
	}
}

func TestSaveRunReplaces(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	r := testRun()
	if err := db.SaveRun(r); err != nil {
		t.Fatal(err)
	}
	r.Stats.Sections = r.Stats.Sections[:1]
	if err := db.SaveRun(r); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadRun(r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Stats.Sections) != 1 {
		t.Errorf("%d sections after resave", len(got.Stats.Sections))
	}
}

func TestLoadRunNotFound(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.LoadRun(uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestRunsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	older, newer := testRun(), testRun()
	newer.FinishedAt = older.FinishedAt.Add(time.Hour)
	for _, r := range []Run{older, newer} {
		if err := db.SaveRun(r); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ids, err := db.Runs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != newer.ID || ids[1] != older.ID {
		t.Errorf("runs = %v", ids)
	}
}
