package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/almuhsiny/blogapi/internal/blogservice"
	"github.com/almuhsiny/blogapi/internal/common"
	"github.com/almuhsiny/blogapi/internal/mailservice"
	"github.com/almuhsiny/blogapi/internal/userservice"
)

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T, h http.Handler) *testServer {
	ts := httptest.NewServer(h)

	t.Cleanup(ts.Close)

	return &testServer{ts}
}

func readResponse(t *testing.T, res *http.Response) (int, http.Header, envelope) {
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}

	var envelope envelope
	err = json.Unmarshal(responseBody, &envelope)
	if err != nil {
		t.Fatal(err)
	}

	return res.StatusCode, res.Header, envelope
}

func newTestApplication(t *testing.T) (*application, *mongo.Database) {
	db := common.TestDB(t)
	cache := common.TestCache(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rabbitURI := common.TestRabbitMQ(t)
	rabbitmq, err := common.NewMessageBroker(rabbitURI)
	require.NoError(t, err)

	err = common.SetupUserExchange(rabbitmq)
	require.NoError(t, err)

	cfg := &Config{
		Port:        ":0",
		Environment: "test",
		Version:     "test",
	}

	app := &application{
		config:      cfg,
		logger:      logger,
		userService: userservice.NewUserService(db, rabbitmq),
		blogService: blogservice.NewBlogService(db, cache, logger),
		mailService: mailservice.NewMailService(rabbitmq, "localhost", "user", "password", "sender@example.com", 1025, logger),
		broker:      rabbitmq,
	}

	return app, db
}

// registerTestUser creates an activated user through the service layer and
// returns its access token.
func registerTestUser(t *testing.T, app *application, db *mongo.Database, name string, admin bool) (*userservice.User, string) {
	ctx := context.Background()

	email := fmt.Sprintf("%s@example.com", name)
	password := "Test_1234!"

	activationToken, err := app.userService.RegisterUser(ctx, name, email, password)
	require.NoError(t, err)

	err = app.userService.ActivateUser(ctx, *activationToken)
	require.NoError(t, err)

	if admin {
		_, err = db.Collection(common.UsersCollection).UpdateOne(ctx,
			bson.D{{Key: "email", Value: email}},
			bson.D{{Key: "$set", Value: bson.D{{Key: "role", Value: userservice.RoleAdmin}}}})
		require.NoError(t, err)
	}

	authToken, err := app.userService.LoginUser(ctx, email, password)
	require.NoError(t, err)

	user, err := app.userService.GetUserByAccessToken(ctx, authToken.AccessTokenPlain)
	require.NoError(t, err)

	return user, authToken.AccessTokenPlain
}

func (ts *testServer) post(t *testing.T, path string, token *string, payload any) (int, http.Header, envelope) {
	return ts.do(t, http.MethodPost, path, token, payload)
}

func (ts *testServer) get(t *testing.T, path string, token *string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodGet, path, token, nil)
}

func (ts *testServer) put(t *testing.T, path string, token *string, payload any) (int, http.Header, envelope) {
	return ts.do(t, http.MethodPut, path, token, payload)
}

func (ts *testServer) delete(t *testing.T, path string, token *string) (int, http.Header, envelope) {
	return ts.do(t, http.MethodDelete, path, token, nil)
}

func (ts *testServer) do(t *testing.T, method, path string, token *string, payload any) (int, http.Header, envelope) {
	var body io.Reader

	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(jsonPayload)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != nil {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", *token))
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return readResponse(t, res)
}
