package store

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/pkg/filesystem"
	"github.com/doeshing/orca-go/internal/ports"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// FileStore keeps one JSON file per key and appends history to a jsonl file.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir (default ~/.orca/state).
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = filesystem.StatePath("state")
	}
	return &FileStore{dir: dir}
}

// Load implements ports.RecordStore.
func (f *FileStore) Load(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ErrRecordNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Save implements ports.RecordStore. Writes go through a temp file and rename so
// a crash never leaves a half-written record.
func (f *FileStore) Save(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(f.dir, domain.DirectoryPermissions); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, sanitizeKey(key)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.pathFor(key))
}

// Append implements ports.HistoryRepository.
func (f *FileStore) Append(_ context.Context, record domain.HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(f.dir, domain.DirectoryPermissions); err != nil {
		return err
	}
	file, err := os.OpenFile(f.historyPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = file.Write(data)
	return err
}

// Records implements ports.HistoryRepository (best-effort: corrupt lines are skipped).
// Results are newest first.
func (f *FileStore) Records(_ context.Context, limit int, command string) ([]domain.HistoryRecord, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.historyPath())
	f.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []domain.HistoryRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec domain.HistoryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if command != "" && rec.Command != command {
			continue
		}
		records = append(records, rec)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Path returns the backing directory.
func (f *FileStore) Path() string {
	return f.dir
}

// Ping checks that the directory is writable.
func (f *FileStore) Ping(context.Context) error {
	return os.MkdirAll(f.dir, domain.DirectoryPermissions)
}

func (f *FileStore) pathFor(key string) string {
	return filepath.Join(f.dir, sanitizeKey(key)+".json")
}

func (f *FileStore) historyPath() string {
	return filepath.Join(f.dir, "history.jsonl")
}

func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "_"
	}
	return unsafeKeyChars.ReplaceAllString(key, "_")
}

var (
	_ ports.RecordStore       = (*FileStore)(nil)
	_ ports.HistoryRepository = (*FileStore)(nil)
)
