package session

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"roombook/internal/api"
	"roombook/internal/apitest"
	"roombook/internal/role"
	"roombook/internal/storage"
)

var quiet = log.New(io.Discard, "", 0)

type failingStorage struct{ storage.Storage }

func (failingStorage) Set(context.Context, string, string) error { return errors.New("disk full") }

func newStore(t *testing.T, st storage.Storage) (*Store, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	srv.AddUser("root", "pw", "ADMIN")
	srv.AddUser("ann", "pw", "USER")

	client := api.New(srv.URL, 0)
	s, err := NewStore(context.Background(), st, client, quiet)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	client.Tokens = s
	return s, srv
}

func TestLoginAndRole(t *testing.T) {
	s, _ := newStore(t, storage.NewMemory())
	ctx := context.Background()

	if s.IsAuthenticated() || s.Role() != role.User {
		t.Fatalf("fresh store should be anonymous with User role")
	}

	if err := s.Login(ctx, "root", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !s.IsAuthenticated() || s.Role() != role.Admin {
		t.Fatalf("after admin login role = %q", s.Role())
	}

	if err := s.Login(ctx, "ann", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.Role() != role.User {
		t.Fatalf("role not recomputed after credential change: %q", s.Role())
	}
}

func TestFailedLoginKeepsCredential(t *testing.T) {
	s, _ := newStore(t, storage.NewMemory())
	ctx := context.Background()

	if err := s.Login(ctx, "root", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	before, _ := s.Credential()

	err := s.Login(ctx, "root", "wrong")
	if !errors.Is(err, api.ErrInvalidCredentials) {
		t.Fatalf("Login with bad password = %v", err)
	}
	after, _ := s.Credential()
	if after != before {
		t.Fatalf("credential changed on failed login")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := storage.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	ctx := context.Background()

	s, _ := newStore(t, db)
	if err := s.Login(ctx, "ann", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	want, _ := s.Credential()
	_ = db.Close()

	db, err = storage.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	restored, err := NewStore(ctx, db, nil, quiet)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if got, ok := restored.Credential(); !ok || got != want {
		t.Fatalf("restored credential = %q ok:%v", got, ok)
	}

	if err := restored.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok, _ := db.Get(ctx, StorageKey); ok {
		t.Fatalf("credential still persisted after logout")
	}
	if restored.IsAuthenticated() {
		t.Fatalf("still authenticated after logout")
	}
}

func TestUnreadableCredentialStartsLoggedOut(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	sealedOld := storage.NewSealed(mem, "old-pass", storage.DefaultKeyParams)
	if err := sealedOld.Set(ctx, StorageKey, "header.payload.sig"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	for name, st := range map[string]storage.Storage{
		"new passphrase": storage.NewSealed(mem, "new-pass", storage.DefaultKeyParams),
		"unsealed value": storage.NewSealed(rawValue(t, "plain-token"), "new-pass", storage.DefaultKeyParams),
	} {
		t.Run(name, func(t *testing.T) {
			s, err := NewStore(ctx, st, nil, quiet)
			if err != nil {
				t.Fatalf("NewStore: %v", err)
			}
			if s.IsAuthenticated() || s.Role().IsAdmin() {
				t.Fatalf("restored an unreadable credential")
			}
			if _, ok, err := st.Get(ctx, StorageKey); ok || err != nil {
				t.Fatalf("unreadable value kept: ok=%v err=%v", ok, err)
			}
			if err := s.SetCredential(ctx, "a.b.c"); err != nil {
				t.Fatalf("SetCredential after recovery: %v", err)
			}
		})
	}
}

func rawValue(t *testing.T, v string) storage.Storage {
	t.Helper()
	mem := storage.NewMemory()
	if err := mem.Set(context.Background(), StorageKey, v); err != nil {
		t.Fatalf("Set: %v", err)
	}
	return mem
}

func TestLogoutMakesNoRequest(t *testing.T) {
	s, srv := newStore(t, storage.NewMemory())
	ctx := context.Background()
	if err := s.Login(ctx, "ann", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	n := len(srv.Calls())
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(srv.Calls()) != n {
		t.Fatalf("logout issued a request")
	}
}

func TestSetCredential(t *testing.T) {
	st := storage.NewMemory()
	s, err := NewStore(context.Background(), st, nil, quiet)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	_ = s.SetCredential(ctx, "first")
	_ = s.SetCredential(ctx, "second")
	if v, _, _ := st.Get(ctx, StorageKey); v != "second" {
		t.Fatalf("persisted %q, want second", v)
	}

	if err := s.SetCredential(ctx, ""); err != nil {
		t.Fatalf("SetCredential empty: %v", err)
	}
	if _, ok, _ := st.Get(ctx, StorageKey); ok {
		t.Fatalf("empty credential should clear storage")
	}
}

func TestSetCredentialPersistFailure(t *testing.T) {
	s, err := NewStore(context.Background(), failingStorage{storage.NewMemory()}, nil, quiet)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.SetCredential(context.Background(), "tok"); err == nil {
		t.Fatalf("expected persist error")
	}
	if got, _ := s.Credential(); got != "tok" {
		t.Fatalf("in-memory credential = %q, want tok", got)
	}
}
