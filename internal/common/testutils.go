package common

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
)

// TestDB starts a throwaway MongoDB container and returns a database handle
// with the application indexes ensured.
func TestDB(t *testing.T) *mongo.Database {
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7.0",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Waiting for connections").WithStartupTimeout(30*time.Second)))
	if err != nil {
		t.Fatalf("could not start mongodb container: %v", err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Fatalf("could not terminate container: %v", err)
		}
	})

	URI, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("could not get mongodb connection URI: %v", err)
	}

	db, err := NewDB(URI)
	if err != nil {
		t.Fatalf("could not connect to mongodb: %v", err)
	}

	t.Cleanup(func() {
		_ = CloseDB(db)
	})

	return db
}

// TestCache starts a throwaway Redis container and returns a connected cache.
func TestCache(t *testing.T) *RedisCache {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7.2-alpine")
	if err != nil {
		t.Fatalf("could not start redis container: %v", err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Fatalf("could not terminate container: %v", err)
		}
	})

	URI, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("could not get redis connection URI: %v", err)
	}

	cache, err := NewCache(URI)
	if err != nil {
		t.Fatalf("could not connect to redis: %v", err)
	}

	t.Cleanup(func() {
		_ = cache.Close()
	})

	return cache
}

func TestRabbitMQ(t *testing.T) string {
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12.11-management-alpine", rabbitmq.WithAdminUsername("guest"), rabbitmq.WithAdminPassword("guest"))
	if err != nil {
		t.Fatalf("could not start rabbitmq container: %v", err)
	}

	connURL, err := container.AmqpURL(ctx)
	if err != nil {
		t.Fatalf("could not get rabbitmq connection URL: %v", err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Fatalf("could not terminate container: %v", err)
		}
	})

	return connURL
}
