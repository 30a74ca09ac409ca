// Package coretier implements the durable relational storage tier
// (spec §4.3): structured records persisted to SQLite, searched with a
// LIKE-based substring query. Grounded on the teacher's
// internal/database package for connection handling and on
// sqlite_dao.py for the table shape and query semantics (tasks renamed
// to records per spec.md).
package coretier

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	errs "github.com/MycelicMemory/memoryhub/internal/errors"
	"github.com/MycelicMemory/memoryhub/internal/logging"
	"github.com/MycelicMemory/memoryhub/internal/record"
)

var log = logging.GetLogger("coretier")

// createdAtLayout is a fixed-width RFC 3339 form, so that ORDER BY on the
// stored text sorts in time order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the core tier: a single-writer SQLite database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	log.Info("opening core tier", "path", path)

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errs.Write("coretier.Open", fmt.Errorf("create directory %s: %w", dir, err))
			}
		}
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errs.Write("coretier.Open", fmt.Errorf("open sqlite3: %w", err))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errs.Write("coretier.Open", fmt.Errorf("ping sqlite3: %w", err))
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("core tier ready", "path", path)
	return s, nil
}

func (s *Store) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(Schema); err != nil {
		return errs.Write("coretier.initSchema", err)
	}
	return nil
}

// Put inserts r, or replaces the existing row with the same ID (upsert
// by id, matching the original's INSERT OR REPLACE semantics).
func (s *Store) Put(r *record.Record) error {
	tagsJSON, err := json.Marshal(r.Tags)
	if err != nil {
		return errs.Invalid("coretier.Put", fmt.Errorf("marshal tags: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO records
			(id, content, tags, context_path, tier, created_at, recalled_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.Content, string(tagsJSON), r.ContextPath, r.Tier,
		r.CreatedAt.UTC().Format(createdAtLayout), r.RecalledCount,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		log.Error("failed to store record", "error", err, "id", r.ID)
		return errs.Write("coretier.Put", err)
	}
	return nil
}

// LoadTier returns every core record, newest first.
func (s *Store) LoadTier() ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, content, tags, context_path, tier, created_at, recalled_count
		FROM records
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, errs.Read("coretier.LoadTier", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// Get returns the record with the given id, or nil if absent.
func (s *Store) Get(id string) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, content, tags, context_path, tier, created_at, recalled_count
		FROM records
		WHERE id = ?
	`, id)
	if err != nil {
		return nil, errs.Read("coretier.Get", err)
	}
	defer rows.Close()
	recs, err := scanAll(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// Search returns up to limit records whose content, tags, or
// context_path contain query, newest first. Matching uses SQLite's
// default LIKE: case-insensitive for ASCII letters, case-sensitive for
// all other characters.
func (s *Store) Search(query string, limit int) ([]*record.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	like := "%" + query + "%"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, content, tags, context_path, tier, created_at, recalled_count
		FROM records
		WHERE content LIKE ? OR tags LIKE ? OR context_path LIKE ?
		ORDER BY created_at DESC
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, errs.Read("coretier.Search", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// IncrementRecall bumps recalled_count for id by one.
func (s *Store) IncrementRecall(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE records SET recalled_count = recalled_count + 1, updated_at = ?
		WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return errs.Write("coretier.IncrementRecall", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Write("coretier.IncrementRecall", err)
	}
	if n == 0 {
		return errs.Invalidf("coretier.IncrementRecall", "no record with id %q", id)
	}
	return nil
}

// Stats reports the row count and total recalls across all core records.
type Stats struct {
	RecordCount  int
	TotalRecalls int
}

// Stats reports core-tier totals.
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	var totalRecalls sql.NullInt64
	row := s.db.QueryRow(`SELECT COUNT(*), SUM(recalled_count) FROM records`)
	if err := row.Scan(&st.RecordCount, &totalRecalls); err != nil {
		return Stats{}, errs.Read("coretier.Stats", err)
	}
	st.TotalRecalls = int(totalRecalls.Int64)
	return st, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Info("closing core tier")
	return s.db.Close()
}

func scanAll(rows *sql.Rows) ([]*record.Record, error) {
	var out []*record.Record
	for rows.Next() {
		var (
			r           record.Record
			tagsJSON    string
			createdAt   string
			contextPath sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Content, &tagsJSON, &contextPath, &r.Tier, &createdAt, &r.RecalledCount); err != nil {
			return nil, errs.Read("coretier.scanAll", err)
		}
		if contextPath.Valid {
			r.ContextPath = contextPath.String
		}
		if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
			log.Warn("failed to decode tags, treating as empty", "error", err, "id", r.ID)
			r.Tags = nil
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			log.Warn("skipping undecodable record", "error",
				errs.Serialization("coretier.scanAll", fmt.Errorf("parse created_at for %s: %w", r.ID, err)))
			continue
		}
		r.CreatedAt = t
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Read("coretier.scanAll", err)
	}
	return out, nil
}
