// Package testdb opens throwaway in-memory SQLite databases for tests.
package testdb

import (
	"fmt"
	"testing"

	"github.com/anjiri1684/course_certificates/database"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New returns a migrated database private to the calling test.
func New(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn))
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	// a single connection keeps the shared in-memory database alive and serialised
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
