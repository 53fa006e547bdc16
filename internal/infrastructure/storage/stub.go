package storage

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/stockledger/backend/internal/application/export"
)

var _ export.ObjectStorage = (*StubObjectStorage)(nil)

// StubObjectStorage keeps objects in memory. It is used when object storage
// is disabled and in tests.
type StubObjectStorage struct {
	// BaseURL prefixes generated download links
	BaseURL string

	mu      sync.RWMutex
	objects map[string]StoredObject
}

// StoredObject is an object held by the stub
type StoredObject struct {
	Data        []byte
	ContentType string
	StoredAt    time.Time
}

// NewStubObjectStorage creates a new StubObjectStorage
func NewStubObjectStorage() *StubObjectStorage {
	return &StubObjectStorage{
		BaseURL: "https://storage.example.com",
		objects: make(map[string]StoredObject),
	}
}

// Upload stores a copy of the data
func (s *StubObjectStorage) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = StoredObject{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		StoredAt:    time.Now(),
	}
	return nil
}

// GenerateDownloadURL returns a fake link valid for 15 minutes
func (s *StubObjectStorage) GenerateDownloadURL(_ context.Context, key string) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}
	expiresAt := time.Now().Add(15 * time.Minute)
	link := s.BaseURL + "/download/" + url.PathEscape(key) + "?expires=" + expiresAt.Format(time.RFC3339)
	return link, expiresAt, nil
}

// Get returns a stored object
func (s *StubObjectStorage) Get(key string) (StoredObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Len returns the number of stored objects
func (s *StubObjectStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
