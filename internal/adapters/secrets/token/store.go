// Package token keeps one assessment service bearer token per identity on
// top of any ports.SecretStore.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/bnema/catq/internal/domain"
	"github.com/bnema/catq/internal/ports"
)

const keyPrefix = "catq/"

var (
	ErrInvalidIdentity = errors.New("identity cannot name a token")
	ErrInvalidToken    = errors.New("token must be a single non-blank word")
)

// Key returns the secret key holding the identity's token, in the form
// catq/<identity>/token. The identity is trimmed and path-escaped so it is
// always exactly one key segment.
func Key(identity domain.Identity) (string, error) {
	name := strings.TrimSpace(string(identity))
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}
	return keyPrefix + url.PathEscape(name) + "/token", nil
}

type Store struct {
	secrets ports.SecretStore
}

func NewStore(secrets ports.SecretStore) *Store {
	return &Store{secrets: secrets}
}

// Token returns the saved token, or "" when the identity has none. An empty
// token makes requests go out without an Authorization header.
func (s *Store) Token(ctx context.Context, identity domain.Identity) (string, error) {
	key, err := Key(identity)
	if err != nil {
		return "", err
	}

	value, err := s.secrets.Get(ctx, key)
	if errors.Is(err, domain.ErrSecretNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token for %s: %w", identity, err)
	}
	return strings.TrimSpace(value), nil
}

func (s *Store) Save(ctx context.Context, identity domain.Identity, token string) error {
	key, err := Key(identity)
	if err != nil {
		return err
	}
	if token == "" || strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return ErrInvalidToken
	}

	if err := s.secrets.Put(ctx, key, token); err != nil {
		return fmt.Errorf("store token for %s: %w", identity, err)
	}
	return nil
}

// Forget deletes the identity's token. Forgetting a missing token succeeds.
func (s *Store) Forget(ctx context.Context, identity domain.Identity) error {
	key, err := Key(identity)
	if err != nil {
		return err
	}

	err = s.secrets.Delete(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrSecretNotFound) {
		return fmt.Errorf("delete token for %s: %w", identity, err)
	}
	return nil
}
