// Package store persists repository metadata, per-file facts and built
// graphs in SQLite.
package store

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"repograph/internal/facts"
	"repograph/internal/graph"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a repository, file or graph is not stored.
var ErrNotFound = errors.New("store: not found")

// Repository is a stored repository record.
type Repository struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store is a SQLite-backed repository store. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database at %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema on %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// UpsertRepository records name with its metadata, replacing the metadata
// of an existing record, and returns the repository id.
func (s *Store) UpsertRepository(ctx context.Context, name string, metadata map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO repositories (name, metadata, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET metadata = excluded.metadata, updated_at = excluded.updated_at`,
		name, string(meta), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("upsert repository %s: %w", name, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM repositories WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup repository %s: %w", name, err)
	}
	return id, nil
}

// Repository returns the record stored under name.
func (s *Store) Repository(ctx context.Context, name string) (Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT id, name, metadata, updated_at FROM repositories WHERE name = ?`, name)
	repo, err := scanRepository(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Repository{}, fmt.Errorf("repository %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return Repository{}, fmt.Errorf("read repository %s: %w", name, err)
	}
	return repo, nil
}

// Repositories lists every stored repository ordered by name.
func (s *Store) Repositories(ctx context.Context) ([]Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, metadata, updated_at FROM repositories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var out []Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("read repository: %w", err)
		}
		out = append(out, repo)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepository(row rowScanner) (Repository, error) {
	var (
		repo    Repository
		meta    string
		updated int64
	)
	if err := row.Scan(&repo.ID, &repo.Name, &meta, &updated); err != nil {
		return Repository{}, err
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &repo.Metadata); err != nil {
			return Repository{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	repo.UpdatedAt = time.Unix(updated, 0)
	return repo, nil
}

// StoreFacts replaces the stored facts of a repository with table in one
// transaction.
func (s *Store) StoreFacts(ctx context.Context, repoID int64, table facts.Table) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM file_facts WHERE repo_id = ?`, repoID); err != nil {
		return fmt.Errorf("clear facts: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO file_facts (repo_id, path, facts) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range table.Paths() {
		data, err := json.Marshal(table[p])
		if err != nil {
			return fmt.Errorf("encode facts for %s: %w", p, err)
		}
		if _, err := stmt.ExecContext(ctx, repoID, p, string(data)); err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY") {
				return fmt.Errorf("repository %d: %w", repoID, ErrNotFound)
			}
			return fmt.Errorf("insert facts for %s: %w", p, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit facts: %w", err)
	}
	return nil
}

// FileFact returns the stored facts of one file.
func (s *Store) FileFact(ctx context.Context, repoID int64, path string) (facts.FileFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT facts FROM file_facts WHERE repo_id = ? AND path = ?`, repoID, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return facts.FileFact{}, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return facts.FileFact{}, fmt.Errorf("read facts for %s: %w", path, err)
	}
	var f facts.FileFact
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return facts.FileFact{}, fmt.Errorf("decode facts for %s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Facts returns every stored fact of a repository.
func (s *Store) Facts(ctx context.Context, repoID int64) (facts.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT path, facts FROM file_facts WHERE repo_id = ? ORDER BY path`, repoID)
	if err != nil {
		return nil, fmt.Errorf("read facts: %w", err)
	}
	defer rows.Close()

	table := make(facts.Table)
	for rows.Next() {
		var p, data string
		if err := rows.Scan(&p, &data); err != nil {
			return nil, fmt.Errorf("scan facts: %w", err)
		}
		var f facts.FileFact
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, fmt.Errorf("decode facts for %s: %w", p, err)
		}
		f.Path = p
		table[p] = f
	}
	return table, rows.Err()
}

// StoreGraph saves the node-link document of g with the fingerprint of the
// facts it was built from, replacing any previous graph.
func (s *Store) StoreGraph(ctx context.Context, repoID int64, fingerprint string, g *graph.Graph) error {
	var buf bytes.Buffer
	if err := g.Encode(&buf); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graphs (repo_id, fingerprint, document, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(repo_id) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			document = excluded.document,
			updated_at = excluded.updated_at`,
		repoID, fingerprint, buf.String(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store graph: %w", err)
	}
	return nil
}

// Graph loads the stored graph of a repository and its fingerprint. A
// corrupt document is reported with graph.ErrDecode.
func (s *Store) Graph(ctx context.Context, repoID int64) (*graph.Graph, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fingerprint, doc string
	err := s.db.QueryRowContext(ctx, `SELECT fingerprint, document FROM graphs WHERE repo_id = ?`, repoID).Scan(&fingerprint, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("graph for repository %d: %w", repoID, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read graph: %w", err)
	}
	g, err := graph.Decode(strings.NewReader(doc))
	if err != nil {
		return nil, fingerprint, err
	}
	return g, fingerprint, nil
}
