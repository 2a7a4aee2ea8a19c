package common

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultDBName = "blogapi"

const (
	UsersCollection    = "users"
	TokensCollection   = "tokens"
	BlogsCollection    = "blogs"
	CommentsCollection = "comments"
	RepliesCollection  = "replies"
)

// NewDB connects to MongoDB, pings the primary and ensures the indexes the
// application relies on. The database name is taken from the URI path.
func NewDB(URI string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(URI))
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("could not ping mongodb: %w", err)
	}

	db := client.Database(databaseFromURI(URI))

	if err := ensureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return db, nil
}

// CloseDB disconnects the underlying client of the database handle.
func CloseDB(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return db.Client().Disconnect(ctx)
}

func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("users_email_unique").SetUnique(true),
			},
		},
		TokensCollection: {
			{
				Keys:    bson.D{{Key: "expiry", Value: 1}},
				Options: options.Index().SetName("tokens_ttl_expiry").SetExpireAfterSeconds(0),
			},
			{
				Keys:    bson.D{{Key: "hash", Value: 1}, {Key: "scope", Value: 1}},
				Options: options.Index().SetName("tokens_hash_scope"),
			},
		},
		BlogsCollection: {
			{
				Keys:    bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}},
				Options: options.Index().SetName("blogs_created_desc"),
			},
			{
				Keys:    bson.D{{Key: "category", Value: 1}},
				Options: options.Index().SetName("blogs_category"),
			},
		},
		CommentsCollection: {
			{
				Keys:    bson.D{{Key: "blog", Value: 1}},
				Options: options.Index().SetName("comments_blog"),
			},
		},
		RepliesCollection: {
			{
				Keys:    bson.D{{Key: "comment", Value: 1}},
				Options: options.Index().SetName("replies_comment"),
			},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("could not ensure %s indexes: %w", collection, err)
		}
	}

	return nil
}
