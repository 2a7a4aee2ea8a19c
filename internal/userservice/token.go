package userservice

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/almuhsiny/blogapi/internal/common"
)

func newTokenModel(db *mongo.Database) *TokenModel {
	return &TokenModel{
		tokens: db.Collection(common.TokensCollection),
		users:  db.Collection(common.UsersCollection),
	}
}

func hashToken(token string) []byte {
	hash := sha256.Sum256([]byte(token))
	return hash[:]
}

func newToken(userID primitive.ObjectID, ttl time.Duration, scope tokenScope) (*Token, error) {
	randomBytes := make([]byte, 16)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return nil, err
	}

	token := &Token{
		Plain:  base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes),
		UserID: userID,
		Expiry: time.Now().Add(ttl),
		Scope:  scope,
	}

	token.Hash = hashToken(token.Plain)

	return token, nil
}

func (m *TokenModel) createToken(ctx context.Context, userID primitive.ObjectID, ttl time.Duration, scope tokenScope) (*Token, error) {
	token, err := newToken(userID, ttl, scope)
	if err != nil {
		return nil, err
	}

	if _, err := m.tokens.InsertOne(ctx, token); err != nil {
		return nil, err
	}

	return token, nil
}

// getToken looks up an unexpired token by hash and scope.
func (m *TokenModel) getToken(ctx context.Context, scope tokenScope, hash []byte) (*Token, error) {
	filter := bson.D{
		{Key: "hash", Value: hash},
		{Key: "scope", Value: scope},
		{Key: "expiry", Value: bson.D{{Key: "$gt", Value: time.Now()}}},
	}

	var token Token
	err := m.tokens.FindOne(ctx, filter).Decode(&token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &token, nil
}

// getUser resolves an unexpired token of the given scope to its user.
func (m *TokenModel) getUser(ctx context.Context, scope tokenScope, hash []byte) (*User, error) {
	token, err := m.getToken(ctx, scope, hash)
	if err != nil {
		return nil, err
	}

	var user User
	err = m.users.FindOne(ctx, bson.D{{Key: "_id", Value: token.UserID}}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &user, nil
}

func (m *TokenModel) deleteTokens(ctx context.Context, userID primitive.ObjectID, scopes ...tokenScope) error {
	filter := bson.D{
		{Key: "user", Value: userID},
		{Key: "scope", Value: bson.D{{Key: "$in", Value: scopes}}},
	}

	_, err := m.tokens.DeleteMany(ctx, filter)
	return err
}

func (m *TokenModel) deleteAllTokens(ctx context.Context, userID primitive.ObjectID) error {
	_, err := m.tokens.DeleteMany(ctx, bson.D{{Key: "user", Value: userID}})
	return err
}

// createAuthToken issues a fresh access/refresh pair, replacing any previous
// pair held by the user.
func (m *TokenModel) createAuthToken(ctx context.Context, userID primitive.ObjectID) (*AuthToken, error) {
	if err := m.deleteTokens(ctx, userID, TokenScopeAccess, TokenScopeRefresh); err != nil {
		return nil, err
	}

	access, err := m.createToken(ctx, userID, AccessTokenTime, TokenScopeAccess)
	if err != nil {
		return nil, err
	}

	refresh, err := m.createToken(ctx, userID, RefreshTokenTime, TokenScopeRefresh)
	if err != nil {
		return nil, err
	}

	return &AuthToken{
		AccessTokenPlain:   access.Plain,
		RefreshTokenPlain:  refresh.Plain,
		AccessTokenExpiry:  access.Expiry,
		RefreshTokenExpiry: refresh.Expiry,
		UserID:             userID.Hex(),
	}, nil
}
