package service

import (
	"testing"
	"time"

	"tankchat/internal/db"
	"tankchat/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB opens a fresh in-memory sqlite store with the full schema.
// TranslateError is on so unique violations surface as gorm.ErrDuplicatedKey,
// same as the postgres setup in internal/db.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// A single connection keeps the in-memory database alive and shared.
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func mustConnect(t *testing.T, gdb *gorm.DB, identity string, now time.Time) {
	t.Helper()
	if _, err := NewPresenceService(gdb).Connect(Call{Identity: identity, Now: now}); err != nil {
		t.Fatalf("connect %s: %v", identity, err)
	}
}

func fetchUser(t *testing.T, gdb *gorm.DB, identity string) models.User {
	t.Helper()
	var user models.User
	if err := gdb.First(&user, "identity = ?", identity).Error; err != nil {
		t.Fatalf("fetch user %s: %v", identity, err)
	}
	return user
}

func countRows(t *testing.T, gdb *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
