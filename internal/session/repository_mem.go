package session

import (
	"context"
	"sync"
	"time"

	"TrickTable/internal/game/model"
)

type memRepo struct {
	mu       sync.Mutex
	states   map[string][]byte // id -> encoded state
	registry []Entry
}

// NewMemoryStore 内存版，进程重启即丢失；状态按编码后的字节保存，避免调用方改到共享数据
func NewMemoryStore() Store {
	return &memRepo{states: make(map[string][]byte)}
}

func (m *memRepo) Create(ctx context.Context, id, owner string) error {
	data, err := model.EncodeState(initialState())
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[id]; ok {
		return ErrExists
	}
	m.states[id] = data
	m.registry = append(m.registry, Entry{GameID: id, Owner: owner, CreatedAt: time.Now().UTC()})
	return nil
}

func (m *memRepo) Get(ctx context.Context, id string) (model.GameState, error) {
	m.mu.Lock()
	data, ok := m.states[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return model.DecodeState(data)
}

func (m *memRepo) Put(ctx context.Context, id string, state model.GameState) error {
	data, err := model.EncodeState(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[id]; !ok {
		return ErrNotFound
	}
	m.states[id] = data
	return nil
}

func (m *memRepo) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.states[id]
	return ok, nil
}

func (m *memRepo) Registry(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.registry...), nil
}
