package userservice

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/almuhsiny/blogapi/internal/common"
)

var (
	ErrDuplicateEmail = errors.New("duplicate email")
	ErrNotFound       = errors.New("user not found")
)

func newUserModel(db *mongo.Database) *UserModel {
	return &UserModel{users: db.Collection(common.UsersCollection)}
}

func (m *UserModel) insertUser(ctx context.Context, u *User) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	u.CreatedAt = now
	u.UpdatedAt = now

	res, err := m.users.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	u.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (m *UserModel) getUserByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	var u User
	err := m.users.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &u, nil
}

func (m *UserModel) getUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := m.users.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &u, nil
}

func (m *UserModel) activateUserAccount(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.users.UpdateByID(ctx, id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "activated", Value: true},
			{Key: "updated_at", Value: time.Now().UTC()},
		}},
	})
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (m *UserModel) updateUserPassword(ctx context.Context, id primitive.ObjectID, pwd Password) error {
	res, err := m.users.UpdateByID(ctx, id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "password.hash", Value: pwd.Hash},
			{Key: "updated_at", Value: time.Now().UTC()},
		}},
	})
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (m *UserModel) updateUserEmail(ctx context.Context, id primitive.ObjectID, email string) error {
	res, err := m.users.UpdateByID(ctx, id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "email", Value: email},
			{Key: "updated_at", Value: time.Now().UTC()},
		}},
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (m *UserModel) deleteUser(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}

	if res.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (m *UserModel) updateUserProfile(ctx context.Context, id primitive.ObjectID, req *UpdateProfileRequest) error {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if req.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *req.Name})
	}
	if req.Bio != nil {
		set = append(set, bson.E{Key: "bio", Value: *req.Bio})
	}
	if req.Picture != nil {
		set = append(set, bson.E{Key: "picture", Value: *req.Picture})
	}

	res, err := m.users.UpdateByID(ctx, id, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}
