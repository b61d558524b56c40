package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
)

// StorageKey is the fixed key the session is persisted under.
const StorageKey = "storefront.session"

// SchemaVersion of the persisted envelope. Version 0 is the legacy unversioned
// {user, token} blob and is accepted on restore.
const SchemaVersion = 1

var (
	ErrNotFound        = errors.New("not found")
	ErrSessionCorrupt  = errors.New("persisted session corrupt")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Persister is durable key/value storage for client state.
type Persister interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type envelope struct {
	Version int         `json:"version"`
	User    models.User `json:"user"`
	Token   string      `json:"token"`
	SavedAt time.Time   `json:"savedAt,omitempty"`
}

func encode(s models.Session, now time.Time) ([]byte, error) {
	return json.Marshal(envelope{
		Version: SchemaVersion,
		User:    s.User,
		Token:   s.Token,
		SavedAt: now.UTC(),
	})
}

func decode(raw []byte) (models.Session, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if env.Version > SchemaVersion || env.Version < 0 {
		return models.Session{}, fmt.Errorf("%w: unknown schema version %d", ErrSessionCorrupt, env.Version)
	}
	if env.Token == "" {
		return models.Session{}, fmt.Errorf("%w: empty token", ErrSessionCorrupt)
	}
	return models.Session{User: env.User, Token: env.Token}, nil
}

// MemoryPersister keeps state in process memory; it backs tests and
// throwaway runs.
type MemoryPersister struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{data: make(map[string][]byte)}
}

func (m *MemoryPersister) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryPersister) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryPersister) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
