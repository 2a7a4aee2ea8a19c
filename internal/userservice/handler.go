package userservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/almuhsiny/blogapi/internal/common"
)

var (
	ErrAuthenticationFailure = fmt.Errorf("unauthorized access")
)

func NewUserService(db *mongo.Database, mb common.MessageProducer) *UserService {
	return &UserService{
		m:    newUserModel(db),
		t:    newTokenModel(db),
		mb:   mb,
		memo: gocache.New(time.Minute, 5*time.Minute),
	}
}

func memoKeyAccessToken(token string) string {
	return "user_by_access_token:" + token
}

// RegisterUser creates a new user account and publishes a user.created event
// carrying the activation token.
func (s *UserService) RegisterUser(ctx context.Context, name, email, password string) (*string, error) {
	v := common.NewValidator()
	validateName(v, name)
	validateEmail(v, email)
	validatePassword(v, password)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	u := User{
		Name:  name,
		Email: email,
		Role:  RoleUser,
	}

	if err := u.Password.set(password); err != nil {
		return nil, err
	}

	if err := s.m.insertUser(ctx, &u); err != nil {
		return nil, err
	}

	token, err := s.t.createToken(ctx, u.ID, ActivationTokenTime, TokenScopeActivate)
	if err != nil {
		return nil, err
	}

	if err := s.publishTokenEvent(ctx, u.Email, token.Plain, common.UserCreatedKey); err != nil {
		return nil, err
	}

	return &token.Plain, nil
}

// ActivateUser activates a user account using the activation token and
// deletes the token afterwards.
func (s *UserService) ActivateUser(ctx context.Context, token string) error {
	v := common.NewValidator()
	ValidateToken(v, token)
	if !v.Valid() {
		return v.ValidationError()
	}

	hash := hashToken(token)

	user, err := s.t.getUser(ctx, TokenScopeActivate, hash)
	if err != nil {
		return err
	}

	if err := s.m.activateUserAccount(ctx, user.ID); err != nil {
		return err
	}

	return s.t.deleteTokens(ctx, user.ID, TokenScopeActivate)
}

// LoginUser verifies the credentials and issues a fresh access/refresh token
// pair, replacing any pair issued earlier.
func (s *UserService) LoginUser(ctx context.Context, email, password string) (*AuthToken, error) {
	v := common.NewValidator()
	validateEmail(v, email)
	validatePassword(v, password)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	user, err := s.m.getUserByEmail(ctx, email)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrAuthenticationFailure
		default:
			return nil, err
		}
	}

	ok, err := user.Password.compare(password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAuthenticationFailure
	}

	return s.t.createAuthToken(ctx, user.ID)
}

// GetUserByAccessToken resolves a bearer token to its user. Lookups are
// memoized for a minute.
func (s *UserService) GetUserByAccessToken(ctx context.Context, token string) (*User, error) {
	v := common.NewValidator()
	ValidateToken(v, token)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if cached, ok := s.memo.Get(memoKeyAccessToken(token)); ok {
		return cached.(*User), nil
	}

	user, err := s.t.getUser(ctx, TokenScopeAccess, hashToken(token))
	if err != nil {
		return nil, err
	}

	s.memo.Set(memoKeyAccessToken(token), user, gocache.DefaultExpiration)

	return user, nil
}

func (s *UserService) LogoutUser(ctx context.Context, userID primitive.ObjectID) error {
	return s.t.deleteTokens(ctx, userID, TokenScopeAccess, TokenScopeRefresh)
}

func (s *UserService) GetUserByID(ctx context.Context, userID primitive.ObjectID) (*User, error) {
	return s.m.getUserByID(ctx, userID)
}

// UpdateProfile updates the mutable profile fields of a user.
func (s *UserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, req *UpdateProfileRequest) (*User, error) {
	v := common.NewValidator()
	if req.Name != nil {
		validateName(v, *req.Name)
	}
	if req.Bio != nil {
		v.Check(v.CheckStringLength(*req.Bio, 0, 500), "bio", "must not be longer than 500 characters")
	}
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if err := s.m.updateUserProfile(ctx, userID, req); err != nil {
		return nil, err
	}

	return s.m.getUserByID(ctx, userID)
}

// RequestEmailChange issues an email-change token bound to the new address
// and publishes a user.email_change event so the confirmation is mailed to
// the address being claimed.
func (s *UserService) RequestEmailChange(ctx context.Context, userID primitive.ObjectID, newEmail string) (*string, error) {
	v := common.NewValidator()
	validateEmail(v, newEmail)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	_, err := s.m.getUserByEmail(ctx, newEmail)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	token, err := newToken(userID, EmailChangeTokenTime, TokenScopeEmailChange)
	if err != nil {
		return nil, err
	}
	token.NewEmail = newEmail

	if _, err := s.t.tokens.InsertOne(ctx, token); err != nil {
		return nil, err
	}

	if err := s.publishTokenEvent(ctx, newEmail, token.Plain, common.UserEmailChangeKey); err != nil {
		return nil, err
	}

	return &token.Plain, nil
}

// ActivateNewEmail applies a pending email change using its token.
func (s *UserService) ActivateNewEmail(ctx context.Context, userID primitive.ObjectID, token string) (*User, error) {
	v := common.NewValidator()
	ValidateToken(v, token)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	dbToken, err := s.t.getToken(ctx, TokenScopeEmailChange, hashToken(token))
	if err != nil {
		return nil, err
	}

	if dbToken.UserID != userID {
		return nil, ErrNotFound
	}

	if err := s.m.updateUserEmail(ctx, userID, dbToken.NewEmail); err != nil {
		return nil, err
	}

	if err := s.t.deleteTokens(ctx, userID, TokenScopeEmailChange); err != nil {
		return nil, err
	}

	return s.m.getUserByID(ctx, userID)
}

// ChangePassword verifies the old password before storing the new hash. All
// issued auth tokens are revoked so other sessions must log in again.
func (s *UserService) ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword string) error {
	v := common.NewValidator()
	v.Check(oldPassword != "", "old_password", "must be provided")
	validatePassword(v, newPassword)
	if !v.Valid() {
		return v.ValidationError()
	}

	user, err := s.m.getUserByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := user.Password.compare(oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthenticationFailure
	}

	var pwd Password
	if err := pwd.set(newPassword); err != nil {
		return err
	}

	if err := s.m.updateUserPassword(ctx, userID, pwd); err != nil {
		return err
	}

	return s.t.deleteTokens(ctx, userID, TokenScopeAccess, TokenScopeRefresh)
}

// RequestPasswordReset issues a reset token for the account holding the
// email and publishes a user.password_reset event so the token is mailed.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) (*string, error) {
	v := common.NewValidator()
	validateEmail(v, email)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	user, err := s.m.getUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	token, err := s.t.createToken(ctx, user.ID, PasswordResetTokenTime, TokenScopePasswordReset)
	if err != nil {
		return nil, err
	}

	if err := s.publishTokenEvent(ctx, user.Email, token.Plain, common.UserPasswordResetKey); err != nil {
		return nil, err
	}

	return &token.Plain, nil
}

// ResetPassword stores the new password for the account the reset token
// belongs to. The reset token and every issued auth token are revoked.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	v := common.NewValidator()
	ValidateToken(v, token)
	validatePassword(v, newPassword)
	if !v.Valid() {
		return v.ValidationError()
	}

	user, err := s.t.getUser(ctx, TokenScopePasswordReset, hashToken(token))
	if err != nil {
		return err
	}

	var pwd Password
	if err := pwd.set(newPassword); err != nil {
		return err
	}

	if err := s.m.updateUserPassword(ctx, user.ID, pwd); err != nil {
		return err
	}

	return s.t.deleteTokens(ctx, user.ID, TokenScopePasswordReset, TokenScopeAccess, TokenScopeRefresh)
}

// DeleteAccount removes the user and every token issued to them.
func (s *UserService) DeleteAccount(ctx context.Context, userID primitive.ObjectID) error {
	if err := s.m.deleteUser(ctx, userID); err != nil {
		return err
	}

	return s.t.deleteAllTokens(ctx, userID)
}

func (s *UserService) publishTokenEvent(ctx context.Context, email, token string, key common.BindingKey) error {
	data := struct {
		Email string
		Token string
	}{
		Email: email,
		Token: token,
	}

	msg, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return s.mb.Publish(ctx, msg, key, common.UserExchange)
}
