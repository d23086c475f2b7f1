// Public domain.

// Package store persists templates, measurements and dispersion tables
// in a sqlite file.
//
// Records are whole gob-encoded snapshots keyed by name, file and
// directory.  The schema is created and upgraded by embedded migrations.
package store

import (
	"bytes"
	"database/sql"
	"embed"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/soniakeys/specred/internal/dispersion"
	"github.com/soniakeys/specred/internal/prior"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned for a missing template.
var ErrNotFound = errors.New("not found")

// Store is an open record store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path and brings its schema up to
// date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Close closes the store.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite driver: %w", err)
	}
	// not closed: that would close s.db
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Version returns the schema version.
func (s *Store) Version() (uint, error) {
	var v uint
	err := s.db.QueryRow(`SELECT version FROM schema_migrations LIMIT 1`).Scan(&v)
	return v, err
}

func encode(v any) ([]byte, error) {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// PutTemplate stores t under name, replacing any previous snapshot.
func (s *Store) PutTemplate(name string, t *prior.Template) error {
	b, err := encode(t)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO templates (name, data) VALUES (?, ?)`, name, b)
	return err
}

// GetTemplate returns the template stored under name.
func (s *Store) GetTemplate(name string) (*prior.Template, error) {
	var b []byte
	err := s.db.QueryRow(`SELECT data FROM templates WHERE name = ?`, name).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	t := &prior.Template{}
	if err := decode(b, t); err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	return t, nil
}

// PutMeasurements stores measurements, replacing any with the same file
// and line.
func (s *Store) PutMeasurements(ms []prior.Measurement) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for i := range ms {
		m := &ms[i]
		b, err := encode(m)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO measurements (file, line, day, data)
			VALUES (?, ?, ?, ?)`, m.File, m.Line, m.Day, b); err != nil {
			return fmt.Errorf("%s line %d: %w", m.File, m.Line, err)
		}
	}
	return tx.Commit()
}

// Measurements returns all stored measurements ordered by day, file and
// line.
func (s *Store) Measurements() ([]prior.Measurement, error) {
	rows, err := s.db.Query(`SELECT data FROM measurements ORDER BY day, file, line`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ms []prior.Measurement
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		var m prior.Measurement
		if err := decode(b, &m); err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, rows.Err()
}

// PutTable replaces the dispersion table of directory dir.
func (s *Store) PutTable(dir string, t dispersion.Table) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM dispersion WHERE dir = ?`, dir); err != nil {
		return err
	}
	for i := range t {
		e := &t[i]
		b, err := encode(e)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO dispersion (dir, file, day, data) VALUES (?, ?, ?, ?)`,
			dir, e.File, e.Day, b); err != nil {
			return fmt.Errorf("%s: %w", e.File, err)
		}
	}
	return tx.Commit()
}

// Table returns the dispersion table of directory dir, sorted by day.
// A directory never stored gives an empty table.
func (s *Store) Table(dir string) (dispersion.Table, error) {
	rows, err := s.db.Query(`SELECT data FROM dispersion WHERE dir = ? ORDER BY day, file`, dir)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var t dispersion.Table
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		var e dispersion.Entry
		if err := decode(b, &e); err != nil {
			return nil, err
		}
		t = append(t, e)
	}
	return t, rows.Err()
}
