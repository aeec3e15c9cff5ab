package cache

import (
	"context"
	"sync"

	"github.com/manish3089/Token-Generator/pkg/models"
)

// TokenStore keeps the most recent token record per API key
type TokenStore interface {
	SaveToken(ctx context.Context, record models.TokenRecord) error
	GetToken(ctx context.Context, apiKey string) (*models.TokenRecord, error)
	DeleteToken(ctx context.Context, apiKey string) error
}

var (
	_ TokenStore = (*RedisClient)(nil)
	_ TokenStore = (*MemoryStore)(nil)
)

// MemoryStore is a process-local TokenStore used when Redis is disabled
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]models.TokenRecord
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]models.TokenRecord)}
}

func (m *MemoryStore) SaveToken(_ context.Context, record models.TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[record.APIKey] = record
	return nil
}

func (m *MemoryStore) GetToken(_ context.Context, apiKey string) (*models.TokenRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.tokens[apiKey]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (m *MemoryStore) DeleteToken(_ context.Context, apiKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, apiKey)
	return nil
}
