package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/jobmatch/internal/data/cryptoutil"
	"github.com/target/jobmatch/internal/domain/model"
	"github.com/target/jobmatch/internal/mocks"
)

func testEncryptor(t *testing.T) *cryptoutil.AESGCMEncryptor {
	t.Helper()
	enc, err := cryptoutil.NewAESGCMEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return enc
}

func TestNewCredentialResolver_Validation(t *testing.T) {
	_, err := NewCredentialResolver(CredentialResolverOptions{Encryptor: cryptoutil.NoopEncryptor{}})
	require.Error(t, err)

	ctrl := gomock.NewController(t)
	_, err = NewCredentialResolver(CredentialResolverOptions{Users: mocks.NewMockUserRepository(ctrl)})
	require.Error(t, err)
}

func TestCredentialResolver_ProcessKeyWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	r, err := NewCredentialResolver(CredentialResolverOptions{
		Users:      mocks.NewMockUserRepository(ctrl),
		Encryptor:  cryptoutil.NoopEncryptor{},
		ProcessKey: " sk-process ",
	})
	require.NoError(t, err)

	for _, owner := range []model.Owner{model.GuestOwner("g"), model.RegisteredOwner("u")} {
		cred, err := r.Resolve(context.Background(), owner)
		require.NoError(t, err)
		assert.Equal(t, "sk-process", cred)
	}
}

func TestCredentialResolver_GuestWithoutProcessKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	r, err := NewCredentialResolver(CredentialResolverOptions{
		Users:     mocks.NewMockUserRepository(ctrl),
		Encryptor: cryptoutil.NoopEncryptor{},
	})
	require.NoError(t, err)

	cred, err := r.Resolve(context.Background(), model.GuestOwner("g"))
	require.NoError(t, err)
	assert.Empty(t, cred)
}

func TestCredentialResolver_RegisteredKey(t *testing.T) {
	enc := testEncryptor(t)
	ciphertext, err := enc.Encrypt([]byte("sk-user"), "user-1")
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	users.EXPECT().GetByID(gomock.Any(), "user-1").Return(&model.User{ID: "user-1", EncryptedScoringKey: &ciphertext}, nil)
	users.EXPECT().GetByID(gomock.Any(), "user-2").Return(&model.User{ID: "user-2"}, nil)
	users.EXPECT().GetByID(gomock.Any(), "user-3").Return(&model.User{ID: "user-3", EncryptedScoringKey: &ciphertext}, nil)
	users.EXPECT().GetByID(gomock.Any(), "user-4").Return(nil, errors.New("gone"))

	r, err := NewCredentialResolver(CredentialResolverOptions{Users: users, Encryptor: enc})
	require.NoError(t, err)
	ctx := context.Background()

	cred, err := r.Resolve(ctx, model.RegisteredOwner("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "sk-user", cred)

	cred, err = r.Resolve(ctx, model.RegisteredOwner("user-2"))
	require.NoError(t, err)
	assert.Empty(t, cred)

	// Ciphertext sealed for another account does not open.
	_, err = r.Resolve(ctx, model.RegisteredOwner("user-3"))
	require.ErrorContains(t, err, "decrypt scoring key")

	_, err = r.Resolve(ctx, model.RegisteredOwner("user-4"))
	require.ErrorContains(t, err, "load owner")
}

func TestKeyService_SaveScoringKey(t *testing.T) {
	enc := testEncryptor(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)

	var stored string
	users.EXPECT().SetScoringKey(gomock.Any(), "user-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, ciphertext string) error {
			stored = ciphertext
			return nil
		})

	svc, err := NewKeyService(users, enc)
	require.NoError(t, err)
	require.NoError(t, svc.SaveScoringKey(context.Background(), model.RegisteredOwner("user-1"), " sk-new "))

	plain, err := enc.Decrypt(stored, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "sk-new", string(plain))
}

func TestKeyService_SaveScoringKey_Rejections(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	svc, err := NewKeyService(users, cryptoutil.NoopEncryptor{})
	require.NoError(t, err)
	ctx := context.Background()

	require.ErrorIs(t, svc.SaveScoringKey(ctx, model.GuestOwner("g"), "sk"), ErrRegisteredOnly)
	require.ErrorIs(t, svc.SaveScoringKey(ctx, model.RegisteredOwner("u"), "  "), ErrInvalidInput)
	require.ErrorIs(t, svc.SaveScoringKey(ctx, model.Owner{}, "sk"), ErrInvalidInput)

	users.EXPECT().SetScoringKey(gomock.Any(), "u", gomock.Any()).Return(errors.New("db down"))
	require.ErrorContains(t, svc.SaveScoringKey(ctx, model.RegisteredOwner("u"), "sk"), "store scoring key")
}
