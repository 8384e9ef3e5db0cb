package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
)

func TestNewStorageManager_Backends(t *testing.T) {
	logger := common.NewSilentLogger()
	ctx := context.Background()

	cfg := config.NewDefaultConfig()
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "db")
	m, err := NewStorageManager(ctx, logger, cfg)
	if err != nil {
		t.Fatalf("badger backend failed: %v", err)
	}
	if m.Backend() != "badger" {
		t.Errorf("expected badger, got %s", m.Backend())
	}
	m.Close()

	cfg.Storage.Backend = "memory"
	m, err = NewStorageManager(ctx, logger, cfg)
	if err != nil {
		t.Fatalf("memory backend failed: %v", err)
	}
	if m.Backend() != "memory" {
		t.Errorf("expected memory, got %s", m.Backend())
	}

	cfg.Storage.Backend = "s3"
	if _, err := NewStorageManager(ctx, logger, cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}
