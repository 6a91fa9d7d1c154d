// Package cache memoises per-dump reductions (profiles, series values) in a
// SQLite database so repeated post-processing of a run only reads dumps that
// changed.
//
// Entries are keyed by run, dump index, field and reduction kind, and carry
// a Stamp: the dump file's modification time and the layout the dump was
// read with. A lookup with a different stamp is a miss.
package cache

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/mutools/internal/timeutil"
)

// Reduction kinds stored in the cache.
const (
	KindProfile = "rprof"
	KindSeries  = "tseries"
)

// Cache is a handle on the reductions database.
type Cache struct {
	db    *sql.DB
	path  string
	clock timeutil.Clock
}

// Option configures Open.
type Option func(*Cache)

// WithClock overrides the clock used for stored timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(ca *Cache) { ca.clock = c }
}

// Open opens or creates the cache database at path and migrates its schema.
func Open(path string, opts ...Option) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Pragmas are per connection; a single connection also serialises writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	c := &Cache{db: db, path: path, clock: timeutil.SystemClock{}}
	for _, o := range opts {
		o(c)
	}
	if err := c.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Path returns the database file path.
func (c *Cache) Path() string { return c.path }

// Close releases the database.
func (c *Cache) Close() error { return c.db.Close() }

// RunID returns the id of the run defined by parfile, registering the run
// on first use. parfile is made absolute so the same run is found from any
// working directory.
func (c *Cache) RunID(parfile string) (string, error) {
	abs, err := filepath.Abs(parfile)
	if err != nil {
		return "", err
	}
	var id string
	err = c.db.QueryRow(`SELECT run_id FROM runs WHERE parfile = ?`, abs).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup run %s: %w", abs, err)
	}
	id = uuid.NewString()
	_, err = c.db.Exec(`INSERT INTO runs (run_id, parfile, created_at_ns) VALUES (?, ?, ?)
		ON CONFLICT(parfile) DO NOTHING`, id, abs, c.clock.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("register run %s: %w", abs, err)
	}
	// A concurrent writer may have won the insert.
	if err := c.db.QueryRow(`SELECT run_id FROM runs WHERE parfile = ?`, abs).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// Key identifies one cached reduction.
type Key struct {
	RunID string
	IDump int
	Field string
	Kind  string
}

// Stamp tells whether a cached reduction is still valid. Layout describes
// how the run's parameters make the dump be read (geometry, boundary
// conditions, number of scalars); it changes when those are edited.
type Stamp struct {
	MTime  time.Time
	Layout string
}

// Get returns the cached values for k if they were stored with stamp st.
func (c *Cache) Get(k Key, st Stamp) ([]float64, bool, error) {
	var (
		stored int64
		layout string
		blob   []byte
	)
	err := c.db.QueryRow(`SELECT mtime_ns, layout, value FROM reductions
		WHERE run_id = ? AND idump = ? AND field = ? AND kind = ?`,
		k.RunID, k.IDump, k.Field, k.Kind).Scan(&stored, &layout, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if stored != st.MTime.UnixNano() || layout != st.Layout {
		return nil, false, nil
	}
	vals, err := decode(blob)
	if err != nil {
		return nil, false, err
	}
	return vals, true, nil
}

// Put stores values for k, replacing any previous entry.
func (c *Cache) Put(k Key, st Stamp, values []float64) error {
	_, err := c.db.Exec(`INSERT INTO reductions
		(run_id, idump, field, kind, mtime_ns, layout, value, stored_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, idump, field, kind) DO UPDATE SET
			mtime_ns = excluded.mtime_ns,
			layout = excluded.layout,
			value = excluded.value,
			stored_at_ns = excluded.stored_at_ns`,
		k.RunID, k.IDump, k.Field, k.Kind, st.MTime.UnixNano(), st.Layout, encode(values), c.clock.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("store %s/%d/%s/%s: %w", k.RunID, k.IDump, k.Field, k.Kind, err)
	}
	return nil
}

// Purge removes cached reductions. An empty runID removes every run.
// It returns the number of reductions deleted.
func (c *Cache) Purge(runID string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if runID == "" {
		res, err = c.db.Exec(`DELETE FROM reductions`)
		if err == nil {
			_, err = c.db.Exec(`DELETE FROM runs`)
		}
	} else {
		res, err = c.db.Exec(`DELETE FROM reductions WHERE run_id = ?`, runID)
		if err == nil {
			_, err = c.db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
		}
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RunStats summarises the cache content of one run.
type RunStats struct {
	RunID      string    `yaml:"run_id"`
	Parfile    string    `yaml:"parfile"`
	Created    time.Time `yaml:"created"`
	Reductions int       `yaml:"reductions"`
	Bytes      int64     `yaml:"bytes"`
}

// Stats summarises the whole cache.
type Stats struct {
	Path       string     `yaml:"path"`
	Version    uint       `yaml:"schema_version"`
	Runs       []RunStats `yaml:"runs"`
	Reductions int        `yaml:"reductions"`
}

// Stats reports per-run entry counts.
func (c *Cache) Stats() (Stats, error) {
	st := Stats{Path: c.path}
	v, _, err := c.MigrateVersion()
	if err != nil {
		return st, err
	}
	st.Version = v

	rows, err := c.db.Query(`SELECT r.run_id, r.parfile, r.created_at_ns,
			COUNT(x.idump), COALESCE(SUM(LENGTH(x.value)), 0)
		FROM runs r LEFT JOIN reductions x ON x.run_id = r.run_id
		GROUP BY r.run_id ORDER BY r.parfile`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rs      RunStats
			created int64
		)
		if err := rows.Scan(&rs.RunID, &rs.Parfile, &created, &rs.Reductions, &rs.Bytes); err != nil {
			return st, err
		}
		rs.Created = time.Unix(0, created).UTC()
		st.Reductions += rs.Reductions
		st.Runs = append(st.Runs, rs)
	}
	return st, rows.Err()
}

func encode(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decode(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("cache: corrupt value of %d bytes", len(buf))
	}
	vals := make([]float64, len(buf)/8)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return vals, nil
}
