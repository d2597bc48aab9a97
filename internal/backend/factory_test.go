package backend

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"fintrack/internal/config"
	"fintrack/internal/core"
)

func quietFactory() Factory {
	return NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := quietFactory().CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if res.Store == nil || res.Cleanup != nil || res.Ready != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fintrack.db")
	res, err := quietFactory().CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			t.Errorf("Cleanup() error = %v", err)
		}
	}()

	if err := res.Ready(ctx); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}
	if _, err := res.Store.CreateUser(ctx, core.User{Email: "a@b.io", PasswordHash: "x"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
}

func TestCreateBackendRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown type", Config{Type: "sheets"}},
		{"sqlite without path", Config{Type: SQLiteBackend}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := quietFactory().CreateBackend(context.Background(), tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "/tmp/x.db"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if got := GetBackendTypeStrings(); len(got) != 2 {
		t.Fatalf("GetBackendTypeStrings() = %v", got)
	}
}
