package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TrickTable/internal/game/model"

	"github.com/redis/go-redis/v9"
)

type redisRepo struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) Store {
	return &redisRepo{rdb: rdb}
}

// key 约定：
//
//	set : ts:sessions                -> Set(id,...)       存在性判断
//	list: ts:registry                -> List(Entry json)  只追加的登记表
//	kv  : ts:session:{id}:state      -> 编码后的 GameState
const (
	sessionsKey = "ts:sessions"
	registryKey = "ts:registry"
)

func stateKey(id string) string {
	return fmt.Sprintf("ts:session:%s:state", id)
}

// KEYS[1] = sessions, KEYS[2] = registry, KEYS[3] = state
// ARGV[1] = id, ARGV[2] = entry json, ARGV[3] = initial state
var createScript = redis.NewScript(`
	if redis.call("SADD", KEYS[1], ARGV[1]) == 0 then
		return 0
	end
	redis.call("RPUSH", KEYS[2], ARGV[2])
	redis.call("SET", KEYS[3], ARGV[3])
	return 1
`)

func (r *redisRepo) Create(ctx context.Context, id, owner string) error {
	entry, err := json.Marshal(Entry{GameID: id, Owner: owner, CreatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	state, err := model.EncodeState(initialState())
	if err != nil {
		return err
	}
	created, err := createScript.Run(ctx, r.rdb, []string{sessionsKey, registryKey, stateKey(id)}, id, entry, state).Int()
	if err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}
	if created == 0 {
		return ErrExists
	}
	return nil
}

func (r *redisRepo) Get(ctx context.Context, id string) (model.GameState, error) {
	data, err := r.rdb.Get(ctx, stateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return model.DecodeState(data)
}

func (r *redisRepo) Put(ctx context.Context, id string, state model.GameState) error {
	data, err := model.EncodeState(state)
	if err != nil {
		return err
	}
	// SET XX：只覆盖已存在的 key
	ok, err := r.rdb.SetXX(ctx, stateKey(id), data, 0).Result()
	if err != nil {
		return fmt.Errorf("put session %s: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *redisRepo) Exists(ctx context.Context, id string) (bool, error) {
	return r.rdb.SIsMember(ctx, sessionsKey, id).Result()
}

// Registry 返回登记表全部条目（按创建顺序）
func (r *redisRepo) Registry(ctx context.Context) ([]Entry, error) {
	raw, err := r.rdb.LRange(ctx, registryKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, line := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("decode registry entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
