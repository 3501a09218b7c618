package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"roombook/internal/api"
	"roombook/internal/metrics"
	"roombook/internal/role"
	"roombook/internal/storage"
)

// StorageKey is the one item a front end persists.
const StorageKey = "token"

type Authenticator interface {
	Login(ctx context.Context, req api.LoginRequest) (string, error)
}

// Store owns the single bearer credential of a front end and mirrors every
// change into its storage backend.
type Store struct {
	mu         sync.RWMutex
	credential string

	storage storage.Storage
	auth    Authenticator
	logger  *log.Logger
}

// NewStore restores a previously persisted credential, if any. A stored value
// that cannot be opened is dropped and the store starts unauthenticated.
func NewStore(ctx context.Context, st storage.Storage, auth Authenticator, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	s := &Store{storage: st, auth: auth, logger: logger}

	v, ok, err := st.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrSealedValue) {
		// key changed or value corrupt; start logged out
		logger.Printf("restore session: %v; discarding stored credential", err)
		if err := st.Delete(ctx, StorageKey); err != nil {
			logger.Printf("restore session: discard: %v", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if ok {
		s.credential = v
	}
	return s, nil
}

// Credential implements api.TokenSource.
func (s *Store) Credential() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential, s.credential != ""
}

func (s *Store) IsAuthenticated() bool {
	_, ok := s.Credential()
	return ok
}

// Role is derived from the current credential on every call.
func (s *Store) Role() role.Role {
	cred, _ := s.Credential()
	return role.Resolve(cred)
}

// SetCredential replaces the held credential. The in-memory value changes
// even when persisting fails; the error says the session will not survive a
// restart.
func (s *Store) SetCredential(ctx context.Context, credential string) error {
	if credential == "" {
		return s.Clear(ctx)
	}
	s.mu.Lock()
	s.credential = credential
	s.mu.Unlock()

	if err := s.storage.Set(ctx, StorageKey, credential); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.credential = ""
	s.mu.Unlock()

	if err := s.storage.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("forget session: %w", err)
	}
	return nil
}

// Login exchanges username and password for a credential. On failure the
// current credential is kept.
func (s *Store) Login(ctx context.Context, username, password string) error {
	if s.auth == nil {
		return errors.New("login: no authenticator configured")
	}
	tok, err := s.auth.Login(ctx, api.LoginRequest{Username: username, Password: password})
	if err != nil {
		result := "error"
		if errors.Is(err, api.ErrInvalidCredentials) {
			result = "invalid_credentials"
		}
		metrics.IncLogin(result)
		s.logger.Printf("login failed user=%s: %v", username, err)
		return err
	}
	metrics.IncLogin("ok")

	if err := s.SetCredential(ctx, tok); err != nil {
		s.logger.Printf("login ok user=%s but session not persisted: %v", username, err)
		return err
	}
	s.logger.Printf("login ok user=%s role=%s", username, role.Resolve(tok))
	return nil
}

// Logout only forgets the local credential; the API is not called.
func (s *Store) Logout(ctx context.Context) error {
	return s.Clear(ctx)
}
