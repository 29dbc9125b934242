package contentcache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// durableTTL is the validity horizon of the durable tier.
const durableTTL = 7 * 24 * time.Hour

// FileStore is the durable cache tier: one JSON file per hash key.
type FileStore struct {
	rootDir string
	now     func() time.Time
}

func NewFileStore(rootDir string) (*FileStore, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll(%s) > %w", rootDir, err)
	}
	return &FileStore{rootDir: rootDir, now: time.Now}, nil
}

func (s *FileStore) filePath(hash string) string {
	return filepath.Join(s.rootDir, hash+".json")
}

// Get reads an entry by hash. Entries past the durable horizon are removed
// and reported as a miss.
func (s *FileStore) Get(hash string) (Entry, bool, error) {
	path := s.filePath(hash)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("os.Stat(%s) > %w", path, err)
	}

	entry, err := s.read(path)
	if err != nil {
		return Entry{}, false, err
	}
	if s.now().Sub(entry.CreatedAt) >= durableTTL {
		_ = os.Remove(path)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Put writes an entry, replacing any previous one for the same hash. The
// entry is written to a temp file and renamed into place so a concurrent
// Get never observes a torn write.
func (s *FileStore) Put(entry Entry) error {
	contents, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("json.Marshal > %w", err)
	}

	tmp, err := os.CreateTemp(s.rootDir, entry.Hash+".tmp-*")
	if err != nil {
		return fmt.Errorf("os.CreateTemp > %w", err)
	}
	if _, err := tmp.Write(contents); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("tmp.Write > %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("tmp.Close > %w", err)
	}
	if err := os.Rename(tmp.Name(), s.filePath(entry.Hash)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("os.Rename > %w", err)
	}
	return nil
}

func (s *FileStore) read(path string) (Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return Entry{}, fmt.Errorf("os.Open > %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	contents, err := io.ReadAll(file)
	if err != nil {
		return Entry{}, fmt.Errorf("io.ReadAll > %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(contents, &entry); err != nil {
		return Entry{}, fmt.Errorf("json.Unmarshal > %w", err)
	}
	return entry, nil
}
