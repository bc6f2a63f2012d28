// Package storetest provides in-memory store backends for tests, so
// tenant stores can be provisioned and dropped without a database
// server.
package storetest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/thisloadme/one-ecommerce/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Opener keeps each provisioned store as a standalone in-memory SQLite
// database. It implements store.Opener.
type Opener struct {
	mu     sync.Mutex
	stores map[string]*gorm.DB
	broken map[string]bool
}

func NewOpener() *Opener {
	return &Opener{
		stores: map[string]*gorm.DB{},
		broken: map[string]bool{},
	}
}

func (o *Opener) Open(storeID string) (*gorm.DB, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.broken[storeID] {
		return nil, fmt.Errorf("store %s: connection refused", storeID)
	}
	db, ok := o.stores[storeID]
	if !ok {
		return nil, fmt.Errorf("store %s does not exist", storeID)
	}
	return db, nil
}

func (o *Opener) Exists(storeID string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.stores[storeID]
	return ok, nil
}

func (o *Opener) Provision(storeID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.broken[storeID] {
		return fmt.Errorf("store %s: connection refused", storeID)
	}
	if _, ok := o.stores[storeID]; ok {
		return nil
	}
	db, err := openMem()
	if err != nil {
		return err
	}
	o.stores[storeID] = db
	return nil
}

func (o *Opener) Drop(storeID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.stores, storeID)
	return nil
}

// Break makes every subsequent Open and Provision of storeID fail,
// simulating an unreachable store.
func (o *Opener) Break(storeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.broken[storeID] = true
}

func openMem() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	// A single connection keeps the in-memory database alive and makes
	// concurrent access serialize instead of hitting SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// NewShared returns an in-memory shared store with the non-tenant-scoped
// schema applied.
func NewShared(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := openMem()
	if err != nil {
		t.Fatalf("open shared store: %v", err)
	}
	if err := db.AutoMigrate(&model.Tenant{}, &model.User{}, &model.UserToken{}, &model.CartLine{}); err != nil {
		t.Fatalf("migrate shared store: %v", err)
	}
	return db
}
