// Package testutil provides a throwaway SQLite database carrying the same
// schema as the postgres migrations, for repository, service and handler tests.
package testutil

import (
	"path/filepath"
	"testing"

	"task-tracker/backend/internal/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE "Task" (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		task_name     TEXT NOT NULL,
		task_descrip  TEXT,
		creation_date DATE DEFAULT (CURRENT_DATE),
		task_status   TEXT DEFAULT 'Created'
	)`,
	`CREATE TABLE "Due_by" (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id   INTEGER NOT NULL REFERENCES "Task"(id),
		due_date  DATE NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX idx_due_by_task_id ON "Due_by" (task_id)`,
}

// NewDB opens a file-backed SQLite database under t.TempDir with the task
// schema applied. It is closed when the test ends.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := database.DefaultPoolConfig()
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	cfg.LogLevel = logger.Silent

	dsn := filepath.Join(t.TempDir(), "tasks.db") + "?_foreign_keys=on"
	pool, err := database.Open(sqlite.Open(dsn), cfg, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = pool.Close()
	})

	for _, stmt := range schema {
		if err := pool.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}

	return pool.DB
}
