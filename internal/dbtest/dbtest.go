// Package dbtest opens throwaway in-memory sqlite databases for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gnidc/Sheet-Manager-sub001/internal/config"
	"github.com/gnidc/Sheet-Manager-sub001/internal/db"
	gormrepository "github.com/gnidc/Sheet-Manager-sub001/internal/repository/gorm"
)

var seq atomic.Int64

// Open returns a migrated database that is closed when the test ends.
func Open(t testing.TB) *db.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("sqlite:file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	conn, err := db.Open(config.DBConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// Store is Open wrapped in the gorm repository.
func Store(t testing.TB) *gormrepository.Store {
	t.Helper()
	return gormrepository.New(Open(t).Gorm)
}
