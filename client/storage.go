package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by Storage.Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Storage is the small key-value surface the client persists state through.
// Browser embedders back it with localStorage; native apps use FileStorage.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStorage is an in-process Storage, used in tests and as the fallback
// when persistent storage is unavailable.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: map[string]string{}}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// FileStorage persists keys as a single JSON document on disk.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

func NewFileStorage(path string) (*FileStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &FileStorage{path: path}, nil
}

func (f *FileStorage) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return "", err
	}
	if v, ok := data[key]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return err
	}
	data[key] = value
	return f.save(data)
}

func (f *FileStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return err
	}
	delete(data, key)
	return f.save(data)
}

func (f *FileStorage) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading storage file: %w", err)
	}
	data := map[string]string{}
	if err := json.Unmarshal(raw, &data); err != nil {
		// A corrupt file starts over rather than wedging the client.
		return map[string]string{}, nil
	}
	return data, nil
}

func (f *FileStorage) save(data map[string]string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding storage file: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("writing storage file: %w", err)
	}
	return os.Rename(tmp, f.path)
}
