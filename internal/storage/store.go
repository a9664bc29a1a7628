// Package storage archives aggregate results in SQLite. Every settings
// document becomes a group holding its named datasets, scalar attributes
// and trial failures.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/san-kum/azisim/internal/experiment"
	"github.com/san-kum/azisim/internal/observers"
)

var (
	ErrGroupExists = errors.New("storage: group already exists")
	ErrNotFound    = errors.New("storage: not found")
)

var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/san-kum/azisim"))

var schema = []string{
	`CREATE TABLE IF NOT EXISTS result_groups (
		name       TEXT PRIMARY KEY,
		run_id     TEXT NOT NULL,
		kind       TEXT NOT NULL,
		trials     INTEGER NOT NULL,
		completed  INTEGER NOT NULL,
		elapsed_ns INTEGER NOT NULL,
		settings   TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS datasets (
		group_name TEXT NOT NULL REFERENCES result_groups(name) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		position   INTEGER NOT NULL,
		length     INTEGER NOT NULL,
		data       BLOB NOT NULL,
		PRIMARY KEY (group_name, name)
	)`,
	`CREATE TABLE IF NOT EXISTS attributes (
		group_name TEXT NOT NULL REFERENCES result_groups(name) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		position   INTEGER NOT NULL,
		value      REAL,
		PRIMARY KEY (group_name, name)
	)`,
	`CREATE TABLE IF NOT EXISTS failures (
		group_name TEXT NOT NULL REFERENCES result_groups(name) ON DELETE CASCADE,
		trial      INTEGER NOT NULL,
		kind       TEXT NOT NULL,
		message    TEXT NOT NULL,
		PRIMARY KEY (group_name, trial)
	)`,
}

// Store is a SQLite result archive.
type Store struct {
	db *sqlx.DB
}

// Group describes one archived aggregate.
type Group struct {
	Name      string `db:"name"`
	RunID     string `db:"run_id"`
	Kind      string `db:"kind"`
	Trials    int    `db:"trials"`
	Completed int    `db:"completed"`
	ElapsedNS int64  `db:"elapsed_ns"`
	Settings  string `db:"settings"`
	CreatedAt int64  `db:"created_at"`
}

func (g Group) Elapsed() time.Duration { return time.Duration(g.ElapsedNS) }

func (g Group) Created() time.Time { return time.UnixMilli(g.CreatedAt) }

// FailureRecord is an archived trial failure.
type FailureRecord struct {
	Trial   int    `db:"trial"`
	Kind    string `db:"kind"`
	Message string `db:"message"`
}

// Archive is a fully loaded group.
type Archive struct {
	Group    Group
	Datasets []observers.Field
	Attrs    []observers.Attr
	Failures []FailureRecord
}

// Open opens or creates the archive at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Check reports ErrGroupExists when group is already archived, so a run can
// be refused before any trial starts.
func (s *Store) Check(ctx context.Context, group string) error {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM result_groups WHERE name = ?`, group); err != nil {
		return fmt.Errorf("check group: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", ErrGroupExists, group)
	}
	return nil
}

// RunID derives a stable identifier from the settings document.
func RunID(settings []byte) string {
	return uuid.NewSHA1(runNamespace, settings).String()
}

// Save archives agg under group in one transaction. It fails with
// ErrGroupExists when the group is already archived.
func (s *Store) Save(ctx context.Context, group string, agg *experiment.AggregateResult) (string, error) {
	return s.save(ctx, group, agg, false)
}

// Replace archives agg under group, removing a previous archive of the group
// in the same transaction. A failed replace leaves the old archive intact.
func (s *Store) Replace(ctx context.Context, group string, agg *experiment.AggregateResult) (string, error) {
	return s.save(ctx, group, agg, true)
}

func (s *Store) save(ctx context.Context, group string, agg *experiment.AggregateResult, replace bool) (string, error) {
	if agg == nil || agg.Summary == nil {
		return "", fmt.Errorf("%s: nothing to save", group)
	}
	settings, err := json.Marshal(agg.Settings)
	if err != nil {
		return "", fmt.Errorf("marshal settings: %w", err)
	}
	runID := RunID(settings)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM result_groups WHERE name = ?`, group); err != nil {
			return "", fmt.Errorf("replace group: %w", err)
		}
	} else {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM result_groups WHERE name = ?`, group); err != nil {
			return "", fmt.Errorf("check group: %w", err)
		}
		if n > 0 {
			return "", fmt.Errorf("%w: %s", ErrGroupExists, group)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO result_groups (name, run_id, kind, trials, completed, elapsed_ns, settings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		group, runID, agg.Summary.Kind(), agg.Trials, agg.Completed,
		agg.Elapsed.Nanoseconds(), string(settings), time.Now().UnixMilli(),
	); err != nil {
		return "", fmt.Errorf("insert group: %w", err)
	}

	for i, f := range agg.Summary.Fields() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO datasets (group_name, name, position, length, data) VALUES (?, ?, ?, ?, ?)`,
			group, f.Name, i, len(f.Values), encodeFloats(f.Values),
		); err != nil {
			return "", fmt.Errorf("insert dataset %s: %w", f.Name, err)
		}
	}
	for i, a := range agg.Summary.Attrs() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attributes (group_name, name, position, value) VALUES (?, ?, ?, ?)`,
			group, a.Name, i, nullable(a.Value),
		); err != nil {
			return "", fmt.Errorf("insert attribute %s: %w", a.Name, err)
		}
	}
	for _, f := range agg.Failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failures (group_name, trial, kind, message) VALUES (?, ?, ?, ?)`,
			group, f.Index, f.Kind, f.Message,
		); err != nil {
			return "", fmt.Errorf("insert failure %d: %w", f.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// List returns every archived group ordered by name.
func (s *Store) List(ctx context.Context) ([]Group, error) {
	groups := []Group{}
	if err := s.db.SelectContext(ctx, &groups, `SELECT * FROM result_groups ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Delete removes a group and everything archived under it.
func (s *Store) Delete(ctx context.Context, group string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM result_groups WHERE name = ?`, group)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: group %s", ErrNotFound, group)
	}
	return nil
}

// Load reads a whole group.
func (s *Store) Load(ctx context.Context, group string) (*Archive, error) {
	var a Archive
	if err := s.db.GetContext(ctx, &a.Group, `SELECT * FROM result_groups WHERE name = ?`, group); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: group %s", ErrNotFound, group)
		}
		return nil, fmt.Errorf("load group: %w", err)
	}

	var datasets []struct {
		Name string `db:"name"`
		Data []byte `db:"data"`
	}
	if err := s.db.SelectContext(ctx, &datasets,
		`SELECT name, data FROM datasets WHERE group_name = ? ORDER BY position`, group); err != nil {
		return nil, fmt.Errorf("load datasets: %w", err)
	}
	for _, d := range datasets {
		values, err := decodeFloats(d.Data)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", d.Name, err)
		}
		a.Datasets = append(a.Datasets, observers.Field{Name: d.Name, Values: values})
	}

	var attrs []struct {
		Name  string          `db:"name"`
		Value sql.NullFloat64 `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &attrs,
		`SELECT name, value FROM attributes WHERE group_name = ? ORDER BY position`, group); err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	for _, at := range attrs {
		v := math.NaN()
		if at.Value.Valid {
			v = at.Value.Float64
		}
		a.Attrs = append(a.Attrs, observers.Attr{Name: at.Name, Value: v})
	}

	if err := s.db.SelectContext(ctx, &a.Failures,
		`SELECT trial, kind, message FROM failures WHERE group_name = ? ORDER BY trial`, group); err != nil {
		return nil, fmt.Errorf("load failures: %w", err)
	}
	return &a, nil
}

// Dataset reads one named dataset of a group.
func (s *Store) Dataset(ctx context.Context, group, name string) ([]float64, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data,
		`SELECT data FROM datasets WHERE group_name = ? AND name = ?`, group, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: dataset %s/%s", ErrNotFound, group, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return decodeFloats(data)
}

// Decode unmarshals the settings the group was produced from into v.
func (g Group) Decode(v any) error {
	return json.Unmarshal([]byte(g.Settings), v)
}

// Document decodes the settings into a generic document.
func (g Group) Document() (map[string]any, error) {
	var doc map[string]any
	if err := g.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func encodeFloats(values []float64) []byte {
	buf := make([]byte, 0, 8*len(values))
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}

func decodeFloats(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("corrupt float blob of %d bytes", len(data))
	}
	values := make([]float64, len(data)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return values, nil
}

// SQLite has no NaN; it is stored as NULL.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}
