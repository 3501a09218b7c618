package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"roombook/internal/config"
)

var testKeyParams = KeyParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16}

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "token"); err != nil || ok {
		t.Fatalf("Get on empty storage = ok:%v err:%v", ok, err)
	}
	if err := s.Set(ctx, "token", "first"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "token", "second"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, ok, err := s.Get(ctx, "token")
	if err != nil || !ok || v != "second" {
		t.Fatalf("Get = %q ok:%v err:%v, want second", v, ok, err)
	}
	if err := s.Delete(ctx, "token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "token"); ok {
		t.Fatalf("value still present after Delete")
	}
	if err := s.Delete(ctx, "token"); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}
}

func TestMemory(t *testing.T) {
	exerciseStorage(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	exerciseStorage(t, s)

	t.Run("survives reopen", func(t *testing.T) {
		ctx := context.Background()
		if err := s.Set(ctx, "token", "kept"); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		reopened, err := OpenSQLite(path)
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		defer reopened.Close()

		v, ok, err := reopened.Get(ctx, "token")
		if err != nil || !ok || v != "kept" {
			t.Fatalf("Get after reopen = %q ok:%v err:%v", v, ok, err)
		}
	})
}

func TestSealed(t *testing.T) {
	inner := NewMemory()
	s := NewSealed(inner, "correct horse", testKeyParams)
	exerciseStorage(t, s)

	ctx := context.Background()
	if err := s.Set(ctx, "token", "secret-token"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	t.Run("value is not stored in plaintext", func(t *testing.T) {
		raw, ok, _ := inner.Get(ctx, "token")
		if !ok {
			t.Fatalf("inner storage missing value")
		}
		if strings.Contains(raw, "secret-token") || !strings.HasPrefix(raw, "v1$") {
			t.Fatalf("unexpected raw value %q", raw)
		}
	})

	t.Run("wrong passphrase does not open", func(t *testing.T) {
		other := NewSealed(inner, "wrong", testKeyParams)
		_, ok, err := other.Get(ctx, "token")
		if ok || !errors.Is(err, ErrSealedValue) {
			t.Fatalf("Get with wrong passphrase = ok:%v err:%v", ok, err)
		}
	})

	t.Run("value moved to another key does not open", func(t *testing.T) {
		raw, _, _ := inner.Get(ctx, "token")
		_ = inner.Set(ctx, "other", raw)
		if _, _, err := s.Get(ctx, "other"); !errors.Is(err, ErrSealedValue) {
			t.Fatalf("expected ErrSealedValue, got %v", err)
		}
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_ = inner.Set(ctx, "junk", "plain")
		if _, _, err := s.Get(ctx, "junk"); !errors.Is(err, ErrSealedValue) {
			t.Fatalf("expected ErrSealedValue, got %v", err)
		}
	})
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("ROOMBOOK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROOMBOOK_TEST_REDIS_ADDR not set")
	}
	r, err := OpenRedis(context.Background(), RedisConfig{Address: addr, Prefix: "roombook-test:"})
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	defer r.Close()
	exerciseStorage(t, r)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, closer, err := Open(ctx, config.StateConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "s.db"), Key: "k"})
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer closer.Close()
	if _, ok := st.(*Sealed); !ok {
		t.Errorf("key set: expected sealed storage, got %T", st)
	}

	st, closer, err = Open(ctx, config.StateConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	defer closer.Close()
	if _, ok := st.(*Memory); !ok {
		t.Errorf("expected *Memory, got %T", st)
	}

	if _, _, err := Open(ctx, config.StateConfig{Backend: "floppy"}); err == nil {
		t.Errorf("unknown backend should fail")
	}
}
