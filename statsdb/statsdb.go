// Package statsdb persists performance statistics to SQLite.
package statsdb

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/orc/engine"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("orc.statsdb")

// ErrRunNotFound indicates the requested run doesn't exist.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	orchestra       TEXT NOT NULL,
	fingerprint     TEXT NOT NULL,
	finished_at     INTEGER NOT NULL,
	cycles          INTEGER NOT NULL,
	notes           INTEGER NOT NULL,
	max_active      INTEGER NOT NULL,
	allocations     INTEGER NOT NULL,
	reuses          INTEGER NOT NULL,
	perf_errors     INTEGER NOT NULL,
	init_errors     INTEGER NOT NULL,
	extra_note_offs INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sections (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	number      INTEGER NOT NULL,
	cycles      INTEGER NOT NULL,
	perf_errors INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS channel_stats (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	seq          INTEGER NOT NULL,
	channel      INTEGER NOT NULL,
	max_amp      REAL NOT NULL,
	out_of_range INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq, channel)
);
`

// DB is a statistics database. seq -1 in channel_stats holds the overall
// figures of a run; sections are numbered from 0 in the order they closed.
type DB struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the database at path. ":memory:" and
// "file::memory:" give a private in-memory database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// an in-memory database lives as long as its one connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Run is one recorded performance.
type Run struct {
	ID          uuid.UUID
	Orchestra   string
	Fingerprint string
	FinishedAt  time.Time
	Stats       engine.Stats
}

// SaveRun records a finished run with its sections and channel statistics.
func (d *DB) SaveRun(r Run) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	defer tx.Rollback()

	st := r.Stats
	_, err = tx.Exec(`INSERT OR REPLACE INTO runs
		(id, orchestra, fingerprint, finished_at, cycles, notes, max_active,
		 allocations, reuses, perf_errors, init_errors, extra_note_offs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Orchestra, r.Fingerprint, r.FinishedAt.Unix(), st.Cycles, st.Notes,
		st.MaxActive, st.Allocations, st.Reuses, st.PerfErrors, st.InitErrors, st.ExtraNoteOffs)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	for _, table := range []string{"sections", "channel_stats"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = ?", r.ID.String()); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
	}

	if err := insertChannels(tx, r.ID, -1, st.MaxAmp, st.OutOfRange); err != nil {
		return err
	}
	for seq, sec := range st.Sections {
		_, err := tx.Exec(`INSERT INTO sections (run_id, seq, number, cycles, perf_errors)
			VALUES (?, ?, ?, ?, ?)`, r.ID.String(), seq, sec.Number, sec.Cycles, sec.PerfErrors)
		if err != nil {
			return fmt.Errorf("saving section %d: %w", sec.Number, err)
		}
		if err := insertChannels(tx, r.ID, seq, sec.MaxAmp, sec.OutOfRange); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	log.Infof("saved run %s: %d sections", r.ID, len(st.Sections))
	return nil
}

func insertChannels(tx *sql.Tx, id uuid.UUID, seq int, maxAmp []float64, over []int64) error {
	for ch, amp := range maxAmp {
		var n int64
		if ch < len(over) {
			n = over[ch]
		}
		_, err := tx.Exec(`INSERT INTO channel_stats (run_id, seq, channel, max_amp, out_of_range)
			VALUES (?, ?, ?, ?, ?)`, id.String(), seq, ch+1, amp, n)
		if err != nil {
			return fmt.Errorf("saving channel %d: %w", ch+1, err)
		}
	}
	return nil
}

// LoadRun retrieves a recorded run.
func (d *DB) LoadRun(id uuid.UUID) (*Run, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := &Run{ID: id}
	st := &r.Stats
	st.RunID = id
	var finished int64
	err := d.db.QueryRow(`SELECT orchestra, fingerprint, finished_at, cycles, notes, max_active,
		allocations, reuses, perf_errors, init_errors, extra_note_offs FROM runs WHERE id = ?`, id.String()).
		Scan(&r.Orchestra, &r.Fingerprint, &finished, &st.Cycles, &st.Notes, &st.MaxActive,
			&st.Allocations, &st.Reuses, &st.PerfErrors, &st.InitErrors, &st.ExtraNoteOffs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	r.FinishedAt = time.Unix(finished, 0)

	rows, err := d.db.Query(`SELECT number, cycles, perf_errors FROM sections
		WHERE run_id = ? ORDER BY seq`, id.String())
	if err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}
	for rows.Next() {
		var sec engine.SectionStats
		if err := rows.Scan(&sec.Number, &sec.Cycles, &sec.PerfErrors); err != nil {
			rows.Close()
			return nil, fmt.Errorf("querying sections: %w", err)
		}
		st.Sections = append(st.Sections, sec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}

	rows, err = d.db.Query(`SELECT seq, max_amp, out_of_range FROM channel_stats
		WHERE run_id = ? ORDER BY seq, channel`, id.String())
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var seq int
		var amp float64
		var n int64
		if err := rows.Scan(&seq, &amp, &n); err != nil {
			return nil, fmt.Errorf("querying channels: %w", err)
		}
		switch {
		case seq < 0:
			st.MaxAmp = append(st.MaxAmp, amp)
			st.OutOfRange = append(st.OutOfRange, n)
		case seq < len(st.Sections):
			sec := &st.Sections[seq]
			sec.MaxAmp = append(sec.MaxAmp, amp)
			sec.OutOfRange = append(sec.OutOfRange, n)
		}
	}
	return r, rows.Err()
}

// Runs lists recorded run ids, most recent first.
func (d *DB) Runs() ([]uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.Query("SELECT id FROM runs ORDER BY finished_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("run id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
