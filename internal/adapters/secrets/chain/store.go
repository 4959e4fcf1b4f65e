package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/catq/internal/adapters/secrets/file"
	passstore "github.com/bnema/catq/internal/adapters/secrets/pass"
	"github.com/bnema/catq/internal/domain"
	"github.com/bnema/catq/internal/ports"
)

// Store prefers primary and falls back when primary cannot serve a request.
// A token written while pass was unavailable lives only in the fallback, so
// reads consult both and deletes clear both.
type Store struct {
	primary  ports.SecretStore
	fallback ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary secret store is nil")
	errNilFallbackStore = errors.New("fallback secret store is nil")
)

func NewStore(primary ports.SecretStore, fallback ports.SecretStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}
	return &Store{primary: primary, fallback: fallback}, nil
}

func NewPassFirstWithFileFallback(fileRoot string) (*Store, error) {
	return NewStore(passstore.NewStore(), filestore.NewStore(fileRoot))
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	err := s.primary.Put(ctx, key, value)
	if err == nil || isContextErr(err) {
		return err
	}

	if fallbackErr := s.fallback.Put(ctx, key, value); fallbackErr != nil {
		return fmt.Errorf("store secret %q: %w", key, errors.Join(err, fallbackErr))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.primary.Get(ctx, key)
	if err == nil || isContextErr(err) {
		return value, err
	}

	value, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr == nil {
		return value, nil
	}
	if isAbsent(err) && errors.Is(fallbackErr, domain.ErrSecretNotFound) {
		return "", fmt.Errorf("secret %q: %w", key, domain.ErrSecretNotFound)
	}
	return "", fmt.Errorf("read secret %q: %w", key, errors.Join(err, fallbackErr))
}

// Delete removes the secret from both backends. Missing entries and an
// unavailable pass count as deleted.
func (s *Store) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, backend := range []ports.SecretStore{s.primary, s.fallback} {
		err := backend.Delete(ctx, key)
		switch {
		case err == nil, isAbsent(err):
		case isContextErr(err):
			return err
		default:
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("delete secret %q: %w", key, err)
	}
	return nil
}

func isAbsent(err error) bool {
	return errors.Is(err, domain.ErrSecretNotFound) || errors.Is(err, passstore.ErrUnavailable)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
