package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"drawing-interpreter/internal/interpreter/models"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is fixed width so text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ============================================================
// SQLite Store
// ============================================================

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenSQLite opens the database at dbPath, creating its directory.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Init applies the embedded migrations in name order.
func (s *SQLiteStore) Init(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := migrations.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, rec models.InterpretationSession) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sessions (id, sheet_name, started_at, ended_at, element_count, success, error)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `,
		rec.ID,
		rec.SheetName,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.EndedAt.UTC().Format(timeLayout),
		rec.ElementCount,
		rec.Success,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]models.InterpretationSession, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, sheet_name, started_at, ended_at, element_count, success, error
        FROM sessions
        ORDER BY started_at DESC, rowid DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.InterpretationSession
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (models.InterpretationSession, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, sheet_name, started_at, ended_at, element_count, success, error
        FROM sessions
        WHERE id = ?
    `, id)

	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.InterpretationSession{}, ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (models.InterpretationSession, error) {
	var (
		rec            models.InterpretationSession
		started, ended string
	)
	if err := row.Scan(&rec.ID, &rec.SheetName, &started, &ended, &rec.ElementCount, &rec.Success, &rec.Error); err != nil {
		return rec, err
	}

	var err error
	if rec.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return rec, fmt.Errorf("parse started_at: %w", err)
	}
	if rec.EndedAt, err = time.Parse(timeLayout, ended); err != nil {
		return rec, fmt.Errorf("parse ended_at: %w", err)
	}
	return rec, nil
}
