package userservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/almuhsiny/blogapi/internal/common"
)

func setupTestEnvironment(t *testing.T) (*UserService, *mongo.Database) {
	db := common.TestDB(t)

	connURL := common.TestRabbitMQ(t)
	mb, err := common.NewMessageBroker(connURL)
	require.NoError(t, err)

	err = common.SetupUserExchange(mb)
	require.NoError(t, err)

	t.Cleanup(func() { _ = mb.Close() })

	return NewUserService(db, mb), db
}

func registerUser(t *testing.T, s *UserService, name, email string) string {
	token, err := s.RegisterUser(context.Background(), name, email, "Test_1234!")
	require.NoError(t, err)
	require.Len(t, *token, 26)

	return *token
}

func TestRegisterUser(t *testing.T) {
	s, _ := setupTestEnvironment(t)
	ctx := context.Background()

	registerUser(t, s, "alice", "alice@example.com")

	t.Run("duplicate email", func(t *testing.T) {
		_, err := s.RegisterUser(ctx, "alice2", "alice@example.com", "Test_1234!")
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := s.RegisterUser(ctx, "a", "not-an-email", "weak")

		var verr common.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Errors, "name")
		assert.Contains(t, verr.Errors, "email")
		assert.Contains(t, verr.Errors, "password")
	})
}

func TestActivateUser(t *testing.T) {
	s, _ := setupTestEnvironment(t)
	ctx := context.Background()

	token := registerUser(t, s, "alice", "alice@example.com")

	err := s.ActivateUser(ctx, token)
	require.NoError(t, err)

	auth, err := s.LoginUser(ctx, "alice@example.com", "Test_1234!")
	require.NoError(t, err)

	user, err := s.GetUserByAccessToken(ctx, auth.AccessTokenPlain)
	require.NoError(t, err)
	assert.True(t, user.Activated)

	// The activation token is single use.
	err = s.ActivateUser(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoginUser(t *testing.T) {
	s, _ := setupTestEnvironment(t)
	ctx := context.Background()

	registerUser(t, s, "alice", "alice@example.com")

	t.Run("valid credentials", func(t *testing.T) {
		auth, err := s.LoginUser(ctx, "alice@example.com", "Test_1234!")
		require.NoError(t, err)
		assert.NotEmpty(t, auth.AccessTokenPlain)
		assert.NotEmpty(t, auth.RefreshTokenPlain)
		assert.True(t, auth.RefreshTokenExpiry.After(auth.AccessTokenExpiry))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := s.LoginUser(ctx, "alice@example.com", "Wrong_1234!")
		assert.ErrorIs(t, err, ErrAuthenticationFailure)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := s.LoginUser(ctx, "nobody@example.com", "Test_1234!")
		assert.ErrorIs(t, err, ErrAuthenticationFailure)
	})
}

func TestLoginReplacesTokenPair(t *testing.T) {
	s, db := setupTestEnvironment(t)
	ctx := context.Background()

	registerUser(t, s, "alice", "alice@example.com")

	_, err := s.LoginUser(ctx, "alice@example.com", "Test_1234!")
	require.NoError(t, err)
	_, err = s.LoginUser(ctx, "alice@example.com", "Test_1234!")
	require.NoError(t, err)

	n, err := db.Collection(common.TokensCollection).CountDocuments(ctx, bson.M{"scope": TokenScopeAccess})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestLogoutUser(t *testing.T) {
	s, _ := setupTestEnvironment(t)
	ctx := context.Background()

	registerUser(t, s, "alice", "alice@example.com")

	auth, err := s.LoginUser(ctx, "alice@example.com", "Test_1234!")
	require.NoError(t, err)

	user, err := s.GetUserByAccessToken(ctx, auth.AccessTokenPlain)
	require.NoError(t, err)

	err = s.LogoutUser(ctx, user.ID)
	require.NoError(t, err)

	// The memoized lookup can serve the user for up to a minute, so assert
	// against the token store instead.
	_, err = s.t.getUser(ctx, TokenScopeAccess, hashToken(auth.AccessTokenPlain))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	s, _ := setupTestEnvironment(t)
	ctx := context.Background()

	registerUser(t, s, "alice", "alice@example.com")

	auth, err := s.LoginUser(ctx, "alice@example.com", "Test_1234!")
	require.NoError(t, err)
	user, err := s.GetUserByAccessToken(ctx, auth.AccessTokenPlain)
	require.NoError(t, err)

	bio := "I write about Go."
	picture := "alice.png"
	updated, err := s.UpdateProfile(ctx, user.ID, &UpdateProfileRequest{Bio: &bio, Picture: &picture})
	require.NoError(t, err)

	assert.Equal(t, "alice", updated.Name)
	assert.Equal(t, "I write about Go.", updated.Bio)
	assert.Equal(t, "alice.png", updated.Picture)
}

func TestEmailChangeFlow(t *testing.T) {
	s, _ := setupTestEnvironment(t)
	ctx := context.Background()

	registerUser(t, s, "alice", "alice@example.com")
	registerUser(t, s, "bob", "bob@example.com")

	auth, err := s.LoginUser(ctx, "alice@example.com", "Test_1234!")
	require.NoError(t, err)
	user, err := s.GetUserByAccessToken(ctx, auth.AccessTokenPlain)
	require.NoError(t, err)

	t.Run("taken address rejected", func(t *testing.T) {
		_, err := s.RequestEmailChange(ctx, user.ID, "bob@example.com")
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("change applied with token", func(t *testing.T) {
		token, err := s.RequestEmailChange(ctx, user.ID, "alice.new@example.com")
		require.NoError(t, err)

		updated, err := s.ActivateNewEmail(ctx, user.ID, *token)
		require.NoError(t, err)
		assert.Equal(t, "alice.new@example.com", updated.Email)

		_, err = s.LoginUser(ctx, "alice.new@example.com", "Test_1234!")
		assert.NoError(t, err)
	})

	t.Run("token bound to requesting user", func(t *testing.T) {
		token, err := s.RequestEmailChange(ctx, user.ID, "alice.other@example.com")
		require.NoError(t, err)

		other, err := s.LoginUser(ctx, "bob@example.com", "Test_1234!")
		require.NoError(t, err)
		bob, err := s.GetUserByAccessToken(ctx, other.AccessTokenPlain)
		require.NoError(t, err)

		_, err = s.ActivateNewEmail(ctx, bob.ID, *token)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestChangePassword(t *testing.T) {
	s, _ := setupTestEnvironment(t)
	ctx := context.Background()

	registerUser(t, s, "alice", "alice@example.com")

	auth, err := s.LoginUser(ctx, "alice@example.com", "Test_1234!")
	require.NoError(t, err)
	user, err := s.GetUserByAccessToken(ctx, auth.AccessTokenPlain)
	require.NoError(t, err)

	t.Run("wrong old password", func(t *testing.T) {
		err := s.ChangePassword(ctx, user.ID, "Wrong_1234!", "Changed_1234!")
		assert.ErrorIs(t, err, ErrAuthenticationFailure)
	})

	t.Run("valid change revokes sessions", func(t *testing.T) {
		err := s.ChangePassword(ctx, user.ID, "Test_1234!", "Changed_1234!")
		require.NoError(t, err)

		_, err = s.t.getUser(ctx, TokenScopeAccess, hashToken(auth.AccessTokenPlain))
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.LoginUser(ctx, "alice@example.com", "Test_1234!")
		assert.ErrorIs(t, err, ErrAuthenticationFailure)

		_, err = s.LoginUser(ctx, "alice@example.com", "Changed_1234!")
		assert.NoError(t, err)
	})
}

func TestPasswordResetFlow(t *testing.T) {
	s, _ := setupTestEnvironment(t)
	ctx := context.Background()

	registerUser(t, s, "alice", "alice@example.com")

	t.Run("unknown email", func(t *testing.T) {
		_, err := s.RequestPasswordReset(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	auth, err := s.LoginUser(ctx, "alice@example.com", "Test_1234!")
	require.NoError(t, err)

	token, err := s.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, *token, 26)

	err = s.ResetPassword(ctx, *token, "Changed_1234!")
	require.NoError(t, err)

	// The reset revokes every issued auth token.
	_, err = s.t.getUser(ctx, TokenScopeAccess, hashToken(auth.AccessTokenPlain))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.LoginUser(ctx, "alice@example.com", "Test_1234!")
	assert.ErrorIs(t, err, ErrAuthenticationFailure)

	_, err = s.LoginUser(ctx, "alice@example.com", "Changed_1234!")
	assert.NoError(t, err)

	// The reset token is single use.
	err = s.ResetPassword(ctx, *token, "Changed_5678!")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAccount(t *testing.T) {
	s, _ := setupTestEnvironment(t)
	ctx := context.Background()

	registerUser(t, s, "alice", "alice@example.com")

	auth, err := s.LoginUser(ctx, "alice@example.com", "Test_1234!")
	require.NoError(t, err)
	user, err := s.GetUserByAccessToken(ctx, auth.AccessTokenPlain)
	require.NoError(t, err)

	err = s.DeleteAccount(ctx, user.ID)
	require.NoError(t, err)

	_, err = s.m.getUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.t.getUser(ctx, TokenScopeAccess, hashToken(auth.AccessTokenPlain))
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteAccount(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
