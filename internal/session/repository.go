package session

import (
	"context"
	"errors"
	"time"

	"TrickTable/internal/game/model"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExists   = errors.New("session already exists")
)

// Store 定义对 session 状态的抽象操作，同一个 session 只有一个写者
type Store interface {
	// Create 登记一个新 session，初始状态 Waiting{players: []}
	Create(ctx context.Context, id, owner string) error
	// Get 读取权威状态，不存在返回 ErrNotFound
	Get(ctx context.Context, id string) (model.GameState, error)
	// Put 覆盖权威状态，只允许已登记的 session
	Put(ctx context.Context, id string, state model.GameState) error
	// Exists 通过登记表判断 session 是否存在
	Exists(ctx context.Context, id string) (bool, error)
}

// Lister 可选接口：列出登记表
type Lister interface {
	Registry(ctx context.Context) ([]Entry, error)
}

// Entry is one line of the append-only session registry.
type Entry struct {
	GameID    string    `json:"gameId"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
}

func initialState() model.GameState {
	return model.Waiting{Players: []string{}}
}
