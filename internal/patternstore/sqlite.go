package patternstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Conceptual-Machines/magda-composer/internal/models"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteStore persists patterns in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the pattern database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("patternstore: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("patternstore: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("patternstore: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS patterns (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			genre       TEXT NOT NULL DEFAULT '',
			instruments TEXT NOT NULL DEFAULT '[]',
			source      TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			embedding   TEXT NOT NULL DEFAULT '[]',
			data        TEXT NOT NULL DEFAULT '{}',
			updated_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_patterns_kind_genre ON patterns(kind, genre);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("patternstore: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]models.Pattern, error) {
	query := `SELECT id, kind, genre, instruments, source, description, embedding, data FROM patterns WHERE 1=1`
	var args []any
	if kind := filters[FilterKind]; kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	if genre := filters[FilterGenre]; genre != "" {
		query += ` AND lower(genre) = lower(?)`
		args = append(args, genre)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []models.Pattern
	for rows.Next() {
		var p models.Pattern
		var kind, insts, emb, data string
		if err := rows.Scan(&p.ID, &kind, &p.Genre, &insts, &p.Source, &p.Description, &emb, &data); err != nil {
			return nil, unavailable("scan", err)
		}
		p.Kind = models.PatternKind(kind)
		if err := json.Unmarshal([]byte(insts), &p.Instruments); err != nil {
			return nil, fmt.Errorf("patternstore: decode instruments for %s: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(emb), &p.Embedding); err != nil {
			return nil, fmt.Errorf("patternstore: decode embedding for %s: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(data), &p.Data); err != nil {
			return nil, fmt.Errorf("patternstore: decode data for %s: %w", p.ID, err)
		}
		if matchesFilters(p, filters) {
			candidates = append(candidates, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("rows", err)
	}
	return rank(candidates, embedding, topK), nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, patterns ...models.Pattern) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patterns (id, kind, genre, instruments, source, description, embedding, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			genre = excluded.genre,
			instruments = excluded.instruments,
			source = excluded.source,
			description = excluded.description,
			embedding = excluded.embedding,
			data = excluded.data,
			updated_at = excluded.updated_at`)
	if err != nil {
		return unavailable("prepare", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range patterns {
		if p.ID == "" {
			return fmt.Errorf("pattern without id")
		}
		insts, _ := json.Marshal(nonNil(p.Instruments))
		emb, _ := json.Marshal(p.Embedding)
		data, _ := json.Marshal(p.Data)
		if _, err := stmt.ExecContext(ctx, p.ID, string(p.Kind), p.Genre, string(insts), p.Source, p.Description, string(emb), string(data), now); err != nil {
			return unavailable("upsert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patterns`).Scan(&n); err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
