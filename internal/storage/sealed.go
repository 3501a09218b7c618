package storage

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var ErrSealedValue = errors.New("storage: sealed value cannot be opened")

type KeyParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
}

var DefaultKeyParams = KeyParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
}

// Sealed encrypts values before handing them to the wrapped Storage. Each
// value carries its own salt; the storage key is bound as additional data so a
// value copied under another key does not open.
type Sealed struct {
	inner      Storage
	passphrase []byte
	params     KeyParams
}

func NewSealed(inner Storage, passphrase string, params KeyParams) *Sealed {
	if params.SaltLength == 0 {
		params = DefaultKeyParams
	}
	return &Sealed{inner: inner, passphrase: []byte(passphrase), params: params}
}

func (s *Sealed) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	plain, err := s.open(key, raw)
	if err != nil {
		return "", false, err
	}
	return plain, true, nil
}

func (s *Sealed) Set(ctx context.Context, key, value string) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *Sealed) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *Sealed) derive(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, s.params.Iterations, s.params.Memory, s.params.Parallelism, chacha20poly1305.KeySize)
}

// Format is v1$salt$nonce||ciphertext, both base64 without padding.
func (s *Sealed) seal(key, value string) (string, error) {
	salt := make([]byte, s.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(s.derive(salt))
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	box := aead.Seal(nonce, nonce, []byte(value), []byte(key))

	return fmt.Sprintf("v1$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(box),
	), nil
}

func (s *Sealed) open(key, raw string) (string, error) {
	parts := strings.Split(raw, "$")
	if len(parts) != 3 || parts[0] != "v1" {
		return "", ErrSealedValue
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrSealedValue
	}
	box, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", ErrSealedValue
	}
	aead, err := chacha20poly1305.NewX(s.derive(salt))
	if err != nil {
		return "", err
	}
	if len(box) < aead.NonceSize() {
		return "", ErrSealedValue
	}
	plain, err := aead.Open(nil, box[:aead.NonceSize()], box[aead.NonceSize():], []byte(key))
	if err != nil {
		return "", ErrSealedValue
	}
	return string(plain), nil
}
