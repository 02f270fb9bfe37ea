package lobby

import (
	"context"
	"errors"
	"fmt"

	"TrickTable/internal/session"
	"TrickTable/internal/utils"

	"github.com/google/uuid"
)

var ErrListUnsupported = errors.New("store cannot list sessions")

type Service struct {
	store session.Store
	newID func() string
}

func NewService(store session.Store) *Service {
	return &Service{store: store, newID: uuid.NewString}
}

// Create 生成新的 session id 并登记，初始状态 Waiting{players: []}
func (s *Service) Create(ctx context.Context, req CreateGameRequest) (CreateGameResponse, error) {
	if req.UID == "" {
		return CreateGameResponse{}, errors.New("uid is required")
	}
	id := s.newID()
	if err := s.store.Create(ctx, id, req.UID); err != nil {
		return CreateGameResponse{}, fmt.Errorf("create game: %w", err)
	}
	utils.Log.Info("game created", "session", id, "owner", req.UID)
	return CreateGameResponse{GameID: id}, nil
}

// List 按登记顺序列出所有 session
func (s *Service) List(ctx context.Context) ([]GameListEntry, error) {
	lister, ok := s.store.(session.Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	entries, err := lister.Registry(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]GameListEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, GameListEntry{GameID: e.GameID, Owner: e.Owner, CreatedAt: e.CreatedAt.UnixMilli()})
	}
	return out, nil
}
