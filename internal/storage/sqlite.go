package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// InitSQLite 打开本地 sqlite 文件（WAL 模式），结果放在 DB
func InitSQLite(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping sqlite db: %w", err)
	}
	DB = db
	return nil
}

// Close 关闭已打开的连接
func Close() {
	if DB != nil {
		_ = DB.Close()
	}
	if Rdb != nil {
		_ = Rdb.Close()
	}
}
