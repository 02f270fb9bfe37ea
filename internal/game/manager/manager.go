package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"TrickTable/internal/game/engine"
	"TrickTable/internal/game/model"
	"TrickTable/internal/session"
	"TrickTable/internal/websocket"
)

var ErrClosed = errors.New("game manager closed")

// GameManager 管理所有对局：session id -> engine，按需启动
type GameManager struct {
	mu        sync.RWMutex
	engines   map[string]*engine.Engine
	store     session.Store
	queueSize int
	closed    bool
}

func NewGameManager(store session.Store, queueSize int) *GameManager {
	return &GameManager{
		engines:   make(map[string]*engine.Engine),
		store:     store,
		queueSize: queueSize,
	}
}

// Exists 查询登记表
func (m *GameManager) Exists(ctx context.Context, id string) (bool, error) {
	return m.store.Exists(ctx, id)
}

// Hub 返回 session 的广播流（必要时启动 engine）
func (m *GameManager) Hub(ctx context.Context, id string) (*websocket.Hub, error) {
	eng, err := m.engineFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return eng.Hub, nil
}

// Submit 统一入口：把 Action 排进对应 session 的队列
func (m *GameManager) Submit(ctx context.Context, a model.Action) error {
	eng, err := m.engineFor(ctx, a.Session())
	if err != nil {
		return err
	}
	if err := eng.EnqueueAction(ctx, a); err != nil {
		if errors.Is(err, engine.ErrStopped) {
			return ErrClosed
		}
		return err
	}
	return nil
}

func (m *GameManager) engineFor(ctx context.Context, id string) (*engine.Engine, error) {
	m.mu.RLock()
	eng, ok := m.engines[id]
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return eng, nil
	}

	exists, err := m.store.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup session %s: %w", id, err)
	}
	if !exists {
		return nil, session.ErrNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if eng, ok := m.engines[id]; ok {
		return eng, nil
	}
	eng = engine.NewEngine(id, m.store, m.queueSize)
	m.engines[id] = eng
	eng.Start()
	return eng, nil
}

// Running 当前已启动的 engine 数
func (m *GameManager) Running() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.engines)
}

// Close 停掉所有 engine，之后的 Submit 返回 ErrClosed
func (m *GameManager) Close() {
	m.mu.Lock()
	m.closed = true
	engines := m.engines
	m.engines = make(map[string]*engine.Engine)
	m.mu.Unlock()

	for _, eng := range engines {
		eng.Stop()
	}
}
