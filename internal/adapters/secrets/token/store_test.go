package token

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/catq/internal/adapters/secrets/file"
	"github.com/bnema/catq/internal/domain"
	portmocks "github.com/bnema/catq/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		identity domain.Identity
		want     string
		wantErr  bool
	}{
		{name: "plain", identity: "student-7", want: "catq/student-7/token"},
		{name: "surrounding space", identity: "  student-7\t", want: "catq/student-7/token"},
		{name: "slash stays one segment", identity: "class/7", want: "catq/class%2F7/token"},
		{name: "blank", identity: "   ", wantErr: true},
		{name: "dot", identity: ".", wantErr: true},
		{name: "parent", identity: "..", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Key(tc.identity)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidIdentity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStoreLoginTakeLogoutLifecycle(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	tokens := NewStore(file.NewStore(root))
	ctx := context.Background()
	identity := domain.Identity("student-7")

	got, err := tokens.Token(ctx, identity)
	require.NoError(t, err)
	assert.Empty(t, got, "no token before login")

	require.NoError(t, tokens.Save(ctx, identity, "tok-123"))
	_, err = os.Stat(filepath.Join(root, "catq", "student-7", "token"))
	require.NoError(t, err)

	got, err = tokens.Token(ctx, " student-7 ")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", got)

	require.NoError(t, tokens.Forget(ctx, identity))
	got, err = tokens.Token(ctx, identity)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, tokens.Forget(ctx, identity), "logout twice is fine")
	_, err = os.Stat(filepath.Join(root, "catq"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStoreSaveValidatesInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		identity domain.Identity
		token    string
		wantErr  error
	}{
		{name: "blank identity", identity: " ", token: "tok", wantErr: ErrInvalidIdentity},
		{name: "empty token", identity: "student-7", token: "", wantErr: ErrInvalidToken},
		{name: "token with space", identity: "student-7", token: "tok 123", wantErr: ErrInvalidToken},
		{name: "token with newline", identity: "student-7", token: "tok\n", wantErr: ErrInvalidToken},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			secrets := portmocks.NewMockSecretStore(t)
			err := NewStore(secrets).Save(context.Background(), tc.identity, tc.token)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestStorePropagatesBackendFailures(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("gpg: decryption failed")
	secrets := portmocks.NewMockSecretStore(t)
	secrets.EXPECT().Get(mock.Anything, "catq/student-7/token").Return("", backendErr).Once()
	secrets.EXPECT().Put(mock.Anything, "catq/student-7/token", "tok").Return(backendErr).Once()
	secrets.EXPECT().Delete(mock.Anything, "catq/student-7/token").Return(backendErr).Once()
	tokens := NewStore(secrets)
	ctx := context.Background()

	_, err := tokens.Token(ctx, "student-7")
	require.ErrorIs(t, err, backendErr)
	assert.ErrorContains(t, err, "student-7")
	require.ErrorIs(t, tokens.Save(ctx, "student-7", "tok"), backendErr)
	require.ErrorIs(t, tokens.Forget(ctx, "student-7"), backendErr)
}

func TestStoreForgetToleratesMissingSecret(t *testing.T) {
	t.Parallel()

	secrets := portmocks.NewMockSecretStore(t)
	secrets.EXPECT().Delete(mock.Anything, "catq/student-7/token").Return(domain.ErrSecretNotFound).Once()

	require.NoError(t, NewStore(secrets).Forget(context.Background(), "student-7"))
}
