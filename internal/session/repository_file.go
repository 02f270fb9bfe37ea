package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"TrickTable/internal/game/model"
)

// 目录结构：
//
//	{dir}/games.jsonl            每行一个 Entry，只追加
//	{dir}/{id}/gameState.json    当前权威状态
type fileRepo struct {
	dir string
	mu  sync.Mutex // 保护 games.jsonl 的追加与扫描
}

func NewFileStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &fileRepo{dir: dir}, nil
}

func (f *fileRepo) registryPath() string {
	return filepath.Join(f.dir, "games.jsonl")
}

func (f *fileRepo) statePath(id string) string {
	return filepath.Join(f.dir, id, "gameState.json")
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && filepath.Base(id) == id
}

func (f *fileRepo) Create(ctx context.Context, id, owner string) error {
	if !validID(id) {
		return fmt.Errorf("invalid session id %q", id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	exists, err := f.scan(func(e Entry) bool { return e.GameID == id })
	if err != nil {
		return err
	}
	if exists {
		return ErrExists
	}
	if err := os.MkdirAll(filepath.Join(f.dir, id), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := f.writeState(id, initialState()); err != nil {
		return err
	}

	line, err := json.Marshal(Entry{GameID: id, Owner: owner, CreatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	file, err := os.OpenFile(f.registryPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append registry: %w", err)
	}
	return file.Sync()
}

func (f *fileRepo) Get(ctx context.Context, id string) (model.GameState, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(f.statePath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	return model.DecodeState(data)
}

func (f *fileRepo) Put(ctx context.Context, id string, state model.GameState) error {
	if !validID(id) {
		return ErrNotFound
	}
	if _, err := os.Stat(f.statePath(id)); errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return f.writeState(id, state)
}

func (f *fileRepo) Exists(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scan(func(e Entry) bool { return e.GameID == id })
}

func (f *fileRepo) Registry(ctx context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Entry
	_, err := f.scan(func(e Entry) bool {
		out = append(out, e)
		return false
	})
	return out, err
}

// scan 逐行读取登记表，match 返回 true 时提前结束
func (f *fileRepo) scan(match func(Entry) bool) (bool, error) {
	file, err := os.Open(f.registryPath())
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open registry: %w", err)
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return false, fmt.Errorf("decode registry entry: %w", err)
		}
		if match(e) {
			return true, nil
		}
	}
	return false, sc.Err()
}

// writeState 先写临时文件再 rename，避免读到写了一半的 JSON
func (f *fileRepo) writeState(id string, state model.GameState) error {
	data, err := model.EncodeState(state)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Join(f.dir, id), "gameState-*.tmp")
	if err != nil {
		return fmt.Errorf("write session %s: %w", id, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), f.statePath(id)); err != nil {
		return fmt.Errorf("write session %s: %w", id, err)
	}
	return nil
}
