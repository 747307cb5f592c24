package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"
)

var ErrNotFound = errors.New("storage: blob not found")

// BlobStore keeps generated artifacts (evaluator sheets, master keys).
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
}

func PutJSON(bs BlobStore, key string, v any) (string, error) {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return bs.Put(key, bytes.NewReader(buf))
}

func GetJSON(bs BlobStore, key string, v any) error {
	rc, err := bs.Get(key)
	if err != nil {
		return err
	}
	defer rc.Close()
	return json.NewDecoder(rc).Decode(v)
}

// MemStore is an in-process BlobStore for tests and single-node dev runs.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemStore() *MemStore { return &MemStore{data: map[string][]byte{}} }

func (m *MemStore) Put(key string, r io.Reader) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return key, nil
}

func (m *MemStore) Get(key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}
