package session

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"TrickTable/internal/game/card"
	"TrickTable/internal/game/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type storeFactory func(t *testing.T) Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "serverData"))
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return NewRedisStore(rdb)
		},
		"sqlite": func(t *testing.T) Store {
			db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "sessions.db")+"?_pragma=busy_timeout(5000)")
			require.NoError(t, err)
			db.SetMaxOpenConns(1)
			t.Cleanup(func() { _ = db.Close() })
			s, err := NewSQLStore(context.Background(), db, DialectSQLite)
			require.NoError(t, err)
			return s
		},
	}
}

func playingState() model.Playing {
	last := card.MustNormal("Q", card.Hearts)
	return model.Playing{
		Players:    []string{"A", "B"},
		Turn:       "B",
		LastCard:   &last,
		LastPlayer: "A",
		Hands: map[string][]card.Card{
			"A": {card.Joker(true)},
			"B": {card.MustNormal("3", card.Clubs), card.MustNormal("2", card.Spades)},
		},
		Rankings: []string{},
	}
}

// ✅ 所有实现跑同一套契约
func TestStoreContract(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			ok, err := s.Exists(ctx, "g1")
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = s.Get(ctx, "g1")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Put(ctx, "g1", model.Finished{}), ErrNotFound)

			require.NoError(t, s.Create(ctx, "g1", "alice"))
			assert.ErrorIs(t, s.Create(ctx, "g1", "bob"), ErrExists)

			ok, err = s.Exists(ctx, "g1")
			require.NoError(t, err)
			assert.True(t, ok)

			st, err := s.Get(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, model.Waiting{Players: []string{}}, st)

			want := playingState()
			require.NoError(t, s.Put(ctx, "g1", want))
			st, err = s.Get(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, want, st)

			fin := model.Finished{Rankings: []string{"A", "B"}}
			require.NoError(t, s.Put(ctx, "g1", fin))
			st, err = s.Get(ctx, "g1")
			require.NoError(t, err)
			assert.Equal(t, fin, st)
		})
	}
}

func TestStoreRegistry(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			require.NoError(t, s.Create(ctx, "g1", "alice"))
			require.NoError(t, s.Create(ctx, "g2", "bob"))

			lister, ok := s.(Lister)
			require.True(t, ok)
			entries, err := lister.Registry(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 2)

			owners := map[string]string{}
			for _, e := range entries {
				owners[e.GameID] = e.Owner
				assert.False(t, e.CreatedAt.IsZero())
			}
			assert.Equal(t, map[string]string{"g1": "alice", "g2": "bob"}, owners)
		})
	}
}

// ✅ 并发创建同一个 id，只能成功一次
func TestStoreConcurrentCreate(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				created int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := s.Create(context.Background(), "same", "x"); err == nil {
						mu.Lock()
						created++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, created)
		})
	}
}

func TestFileStoreRejectsPathIDs(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, s.Create(ctx, "../escape", "x"))
	_, err = s.Get(ctx, "../escape")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Create(ctx, "g1", "alice"))
	require.NoError(t, s1.Put(ctx, "g1", model.Waiting{Players: []string{"alice", "bob"}}))

	s2, err := NewFileStore(dir)
	require.NoError(t, err)
	ok, err := s2.Exists(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, ok)
	st, err := s2.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, model.Waiting{Players: []string{"alice", "bob"}}, st)
}

func TestRedisStoreKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisStore(rdb)

	require.NoError(t, s.Create(context.Background(), "g1", "alice"))
	assert.True(t, mr.Exists(stateKey("g1")))
	members, err := mr.Members(sessionsKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, members)
	list, err := mr.List(registryKey)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRebindPostgres(t *testing.T) {
	r := &sqlRepo{dialect: DialectPostgres}
	assert.Equal(t, "UPDATE sessions SET state = $1 WHERE id = $2", r.rebind("UPDATE sessions SET state = ? WHERE id = ?"))
	r.dialect = DialectSQLite
	assert.Equal(t, "SELECT ?", r.rebind("SELECT ?"))
}
