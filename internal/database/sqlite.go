package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

var (
	db   *sql.DB
	once sync.Once
)

func Init(dbPath string) error {
	var err error
	once.Do(func() {
		// 确保数据目录存在
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err = os.MkdirAll(dir, 0755); err != nil {
				return
			}
		}

		// 添加连接参数：WAL模式、忙等待超时
		dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return
		}
		if err = db.Ping(); err != nil {
			return
		}

		// 限制连接池大小，SQLite 单写多读
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		err = createTables()
		if err != nil {
			return
		}
		err = runMigrations()
	})
	return err
}

func GetDB() *sql.DB {
	return db
}

func createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generation_logs (
		id TEXT PRIMARY KEY,
		request_id TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		client_id TEXT NOT NULL,
		model_id TEXT,
		provider TEXT,
		row_count INTEGER NOT NULL DEFAULT 0,
		rows_returned INTEGER NOT NULL DEFAULT 0,
		status_code INTEGER NOT NULL,
		error_kind TEXT,
		error_message TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL,
		input_tokens INTEGER,
		output_tokens INTEGER,
		cost_micros INTEGER,
		cost_usd TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_generation_logs_time ON generation_logs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_generation_logs_model_time ON generation_logs(model_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_generation_logs_status ON generation_logs(status_code);

	CREATE TABLE IF NOT EXISTS system_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

func runMigrations() error {
	// 早期版本没有记录错误信息
	_, _ = db.Exec(`ALTER TABLE generation_logs ADD COLUMN error_message TEXT`)
	// 请求 ID 由调用方提供，可能重复，不能作为主键
	_, _ = db.Exec(`ALTER TABLE generation_logs ADD COLUMN request_id TEXT`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_generation_logs_request_id ON generation_logs(request_id)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_generation_logs_error_kind ON generation_logs(error_kind)`)
	return nil
}

func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}
