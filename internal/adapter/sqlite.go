package adapter

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"glucotrack/internal/domain"
)

// SQLite is an FS kept inside a single SQLite database file. Each file is
// one row; folders are explicit rows so MkdirAll and Exists behave like a
// directory tree.
type SQLite struct {
	db     *sql.DB
	dbPath string
}

// NewSQLite opens (and migrates) the database at dbPath
func NewSQLite(dbPath string) (*SQLite, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = filepath.Clean(dbPath) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		is_dir INTEGER NOT NULL DEFAULT 0,
		data BLOB,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_files_dir ON files(is_dir);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Kind returns the backend kind
func (s *SQLite) Kind() domain.BackendKind {
	return domain.BackendSQLite
}

// Root returns the database path
func (s *SQLite) Root() string {
	return s.dbPath
}

// Exists reports whether a file or folder row exists for name
func (s *SQLite) Exists(name string) (bool, error) {
	clean, err := CleanPath(name)
	if err != nil {
		return false, err
	}
	if clean == "" {
		return true, nil
	}

	var n int
	err = s.db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM files WHERE path = ? OR path LIKE ? ESCAPE '\'`,
		clean, escapeLike(clean)+"/%").Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", clean, err)
	}
	return n > 0, nil
}

// Open loads a file row into memory, or buffers writes until Close stores them
func (s *SQLite) Open(name string, mode Mode) (File, error) {
	clean, err := CleanPath(name)
	if err != nil {
		return nil, err
	}

	if mode == ModeWrite {
		return &uploadFile{name: clean, upload: func(r io.Reader) error {
			data, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			return s.put(clean, data)
		}}, nil
	}

	var (
		data  []byte
		isDir bool
	)
	err = s.db.QueryRowContext(context.Background(),
		`SELECT data, is_dir FROM files WHERE path = ?`, clean).Scan(&data, &isDir)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, clean)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", clean, err)
	}
	if isDir {
		return nil, fmt.Errorf("%s is a folder", clean)
	}
	return &blobFile{Reader: bytes.NewReader(data), name: clean}, nil
}

// MkdirAll inserts folder rows for name and each parent
func (s *SQLite) MkdirAll(name string) error {
	clean, err := CleanPath(name)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	for dir := clean; dir != "" && dir != "."; dir = path.Dir(dir) {
		_, err := s.db.ExecContext(context.Background(),
			`INSERT INTO files (path, is_dir, updated_at) VALUES (?, 1, ?)
			 ON CONFLICT(path) DO NOTHING`, dir, now)
		if err != nil {
			return fmt.Errorf("failed to create folder %s: %w", dir, err)
		}
	}
	return nil
}

func (s *SQLite) put(name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO files (path, is_dir, data, updated_at) VALUES (?, 0, ?, ?)
		ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, name, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

type blobFile struct {
	*bytes.Reader
	name string
}

func (f *blobFile) Write([]byte) (int, error) {
	return 0, fmt.Errorf("%s: %w", f.name, errReadOnly)
}

func (f *blobFile) Close() error {
	return nil
}
