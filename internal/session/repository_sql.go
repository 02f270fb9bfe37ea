package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"TrickTable/internal/game/model"
)

// Dialect 选择占位符风格；SQL 本身同时兼容 Postgres 和 SQLite
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

const schema = `CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	state      TEXT NOT NULL
)`

type sqlRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore 建表并返回基于 database/sql 的 Store
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrate sessions table: %w", err)
	}
	return &sqlRepo{db: db, dialect: dialect}, nil
}

// rebind 把 ? 换成 $1, $2 ...（Postgres）
func (r *sqlRepo) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *sqlRepo) Create(ctx context.Context, id, owner string) error {
	data, err := model.EncodeState(initialState())
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		r.rebind(`INSERT INTO sessions (id, owner, created_at, state) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
		id, owner, time.Now().UTC().UnixMilli(), string(data),
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (r *sqlRepo) Get(ctx context.Context, id string) (model.GameState, error) {
	var data string
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT state FROM sessions WHERE id = ?`), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return model.DecodeState([]byte(data))
}

func (r *sqlRepo) Put(ctx context.Context, id string, state model.GameState) error {
	data, err := model.EncodeState(state)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE sessions SET state = ? WHERE id = ?`), string(data), id)
	if err != nil {
		return fmt.Errorf("put session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put session %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlRepo) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM sessions WHERE id = ?`), id).Scan(&n); err != nil {
		return false, fmt.Errorf("check session %s: %w", id, err)
	}
	return n > 0, nil
}

func (r *sqlRepo) Registry(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, owner, created_at FROM sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			millis int64
		)
		if err := rows.Scan(&e.GameID, &e.Owner, &millis); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		e.CreatedAt = time.UnixMilli(millis).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
