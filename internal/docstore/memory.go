package docstore

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*Document),
	}
}

func docKey(collection, id string) string {
	return collection + "/" + id
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.docs[docKey(collection, id)]
	if !exists {
		return nil, ErrNotFound
	}

	copied := *doc
	copied.Data = append([]byte(nil), doc.Data...)
	return &copied, nil
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey(collection, id)
	if _, exists := s.docs[key]; exists {
		return nil
	}

	now := time.Now()
	s.docs[key] = &Document{
		Collection: collection,
		ID:         id,
		Data:       append([]byte(nil), data...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey(collection, id)
	now := time.Now()

	if doc, exists := s.docs[key]; exists {
		doc.Data = append([]byte(nil), data...)
		doc.UpdatedAt = now
		return nil
	}

	s.docs[key] = &Document{
		Collection: collection,
		ID:         id,
		Data:       append([]byte(nil), data...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return nil
}

func (s *MemoryStore) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
