package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/datatecnica/sampleshare/internal/domain"
	apperrors "github.com/datatecnica/sampleshare/internal/errors"
)

// FileStore keeps share records in a single JSON document. Every mutation
// reads the whole file, applies the change, and rewrites it. The mutex makes
// the store safe within one process; cross-process writers are not
// supported.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed store at the given path. The parent
// directory is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() ([]domain.ShareRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []domain.ShareRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tracking file %s: %w", s.path, err)
	}

	var records []domain.ShareRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse tracking file %s: %w", s.path, err)
	}
	return records, nil
}

func (s *FileStore) save(records []domain.ShareRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create tracking directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tracking records: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write tracking file %s: %w", s.path, err)
	}
	log.Debugf("Saved %d tracking records to %s", len(records), s.path)
	return nil
}

// Append adds a record at the end of the document.
func (s *FileStore) Append(ctx context.Context, record domain.ShareRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	records = append(records, record)
	return s.save(records)
}

// Get returns the record with the given id.
func (s *FileStore) Get(ctx context.Context, id string) (domain.ShareRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return domain.ShareRecord{}, err
	}
	for _, record := range records {
		if record.ID == id {
			return record, nil
		}
	}
	return domain.ShareRecord{}, fmt.Errorf("record %q: %w", id, apperrors.ErrRecordNotFound)
}

// UpdateStatus persists a new active flag for the record.
func (s *FileStore) UpdateStatus(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID == id {
			records[i].Active = active
			return s.save(records)
		}
	}
	return fmt.Errorf("record %q: %w", id, apperrors.ErrRecordNotFound)
}

// Delete removes the record with the given id.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID == id {
			records = append(records[:i], records[i+1:]...)
			return s.save(records)
		}
	}
	return fmt.Errorf("record %q: %w", id, apperrors.ErrRecordNotFound)
}

// ListAll returns all records in insertion order.
func (s *FileStore) ListAll(ctx context.Context) ([]domain.ShareRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}
