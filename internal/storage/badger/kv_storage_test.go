package badger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
)

func setupTestKV(t *testing.T) *KVStorage {
	t.Helper()

	logger := common.NewSilentLogger()
	cfg := &config.BadgerConfig{Path: t.TempDir()}
	db, err := NewBadgerDB(logger, cfg)
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewKVStorage(db, logger)
}

func TestKVStorage_SetAndGet(t *testing.T) {
	kv := setupTestKV(t)
	ctx := context.Background()

	if err := kv.Set(ctx, "token", "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := kv.Get(ctx, "token")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != "abc" {
		t.Errorf("expected abc, got %s", val)
	}
}

func TestKVStorage_GetNotFound(t *testing.T) {
	kv := setupTestKV(t)

	_, err := kv.Get(context.Background(), "nonexistent-key")
	if !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestKVStorage_Upsert(t *testing.T) {
	kv := setupTestKV(t)
	ctx := context.Background()

	if err := kv.Set(ctx, "key", "value1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := kv.Set(ctx, "key", "value2"); err != nil {
		t.Fatalf("Set (upsert) failed: %v", err)
	}

	val, err := kv.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != "value2" {
		t.Errorf("expected value2, got %s", val)
	}
}

func TestKVStorage_Delete(t *testing.T) {
	kv := setupTestKV(t)
	ctx := context.Background()

	if err := kv.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := kv.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := kv.Get(ctx, "key"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := kv.Delete(ctx, "nonexistent"); err != nil {
		t.Errorf("Delete nonexistent key should not error: %v", err)
	}
}

func TestKVStorage_GetAll(t *testing.T) {
	kv := setupTestKV(t)
	ctx := context.Background()

	all, err := kv.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll on empty store failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected 0 entries, got %d", len(all))
	}

	kv.Set(ctx, "key1", "val1")
	kv.Set(ctx, "key2", "val2")

	all, err = kv.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all["key1"] != "val1" || all["key2"] != "val2" {
		t.Errorf("unexpected entries %v", all)
	}
}

func TestManager_PersistsAcrossReopen(t *testing.T) {
	logger := common.NewSilentLogger()
	cfg := &config.BadgerConfig{Path: filepath.Join(t.TempDir(), "folio")}
	ctx := context.Background()

	m, err := NewManager(logger, cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if m.Backend() != "badger" {
		t.Errorf("expected backend badger, got %s", m.Backend())
	}
	if err := m.KeyValueStorage().Set(ctx, "token", "persisted"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	m, err = NewManager(logger, cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer m.Close()

	val, err := m.KeyValueStorage().Get(ctx, "token")
	if err != nil || val != "persisted" {
		t.Errorf("expected persisted token after reopen, got %q (%v)", val, err)
	}
}
