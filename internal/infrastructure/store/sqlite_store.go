package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/pkg/filesystem"
	"github.com/doeshing/orca-go/internal/ports"
)

// SQLiteStore persists keyed records and execution history in a SQLite database.
// When the database cannot be opened it degrades to a FileStore next to it.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	fallback *FileStore
	mu       sync.Mutex
}

// NewSQLiteStore creates (or opens) the database at path (default ~/.orca/orca.db).
func NewSQLiteStore(path string) *SQLiteStore {
	if path == "" {
		path = filesystem.StatePath("orca.db")
	}
	fallback := NewFileStore(filepath.Join(filepath.Dir(path), "state"))
	_ = os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &SQLiteStore{path: path, fallback: fallback}
	}
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{db: db, path: path, fallback: fallback}
	if err := store.init(); err != nil {
		_ = db.Close()
		return &SQLiteStore{path: path, fallback: fallback}
	}
	return store
}

func (s *SQLiteStore) init() error {
	if s.db == nil {
		return os.ErrInvalid
	}
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT,
		command TEXT,
		args TEXT,
		role TEXT,
		user TEXT,
		success INTEGER,
		repaired INTEGER,
		exit_code INTEGER,
		error_kind TEXT,
		message TEXT,
		execution_time_ms INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_history_command ON history(command);`)
	return err
}

// Degraded reports whether the store fell back to plain files.
func (s *SQLiteStore) Degraded() bool {
	return s.db == nil
}

// Load implements ports.RecordStore.
func (s *SQLiteStore) Load(ctx context.Context, key string, dest interface{}) error {
	if s.db == nil {
		return s.fallback.Load(ctx, key, dest)
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrRecordNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Save implements ports.RecordStore.
func (s *SQLiteStore) Save(ctx context.Context, key string, value interface{}) error {
	if s.db == nil {
		return s.fallback.Save(ctx, key, value)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Append implements ports.HistoryRepository.
func (s *SQLiteStore) Append(ctx context.Context, record domain.HistoryRecord) error {
	if s.db == nil {
		return s.fallback.Append(ctx, record)
	}
	args, err := json.Marshal(record.Args)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO history
		(timestamp, command, args, role, user, success, repaired, exit_code, error_kind, message, execution_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		record.Command,
		string(args),
		record.Role,
		record.User,
		boolToInt(record.Success),
		boolToInt(record.Repaired),
		record.ExitCode,
		string(record.ErrorKind),
		record.Message,
		record.ExecutionTimeMS,
	)
	return err
}

// Records implements ports.HistoryRepository, newest first.
func (s *SQLiteStore) Records(ctx context.Context, limit int, command string) ([]domain.HistoryRecord, error) {
	if s.db == nil {
		return s.fallback.Records(ctx, limit, command)
	}
	builder := strings.Builder{}
	builder.WriteString("SELECT timestamp, command, args, role, user, success, repaired, exit_code, error_kind, message, execution_time_ms FROM history")
	var args []interface{}
	if command != "" {
		builder.WriteString(" WHERE command = ?")
		args = append(args, command)
	}
	builder.WriteString(" ORDER BY id DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var (
			rec               domain.HistoryRecord
			ts, rawArgs, kind string
			success, repaired int
		)
		if err := rows.Scan(&ts, &rec.Command, &rawArgs, &rec.Role, &rec.User, &success, &repaired,
			&rec.ExitCode, &kind, &rec.Message, &rec.ExecutionTimeMS); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = t
		}
		_ = json.Unmarshal([]byte(rawArgs), &rec.Args)
		rec.Success = success == 1
		rec.Repaired = repaired == 1
		rec.ErrorKind = domain.ErrorKind(kind)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return s.fallback.Ping(ctx)
	}
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ ports.RecordStore       = (*SQLiteStore)(nil)
	_ ports.HistoryRepository = (*SQLiteStore)(nil)
)
