package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/hypeshelf/backend/internal/auth"
	"github.com/hypeshelf/backend/internal/recommendations"
	"github.com/hypeshelf/backend/internal/tmdb"
	"github.com/hypeshelf/backend/internal/users"
	"gorm.io/gorm"
)

const (
	testAdminSubject = "subject-admin"
	testAliceSubject = "subject-alice"
	testBobSubject   = "subject-bob"
)

type stubProviderVerifier struct {
	claims map[string]auth.ProviderClaims
}

func (s stubProviderVerifier) Verify(_ context.Context, token string) (auth.ProviderClaims, error) {
	claims, ok := s.claims[token]
	if !ok {
		return auth.ProviderClaims{}, errors.New("unknown token")
	}
	return claims, nil
}

type stubTokenManager struct {
	subjects    map[string]string
	validateErr error
}

func (s stubTokenManager) IssueBackendToken(_ context.Context, claims auth.ProviderClaims) (string, int64, error) {
	return "issued-" + claims.Subject, 1800, nil
}

func (s stubTokenManager) ValidateToken(token string) (string, error) {
	if s.validateErr != nil {
		return "", s.validateErr
	}
	subject, ok := s.subjects[token]
	if !ok {
		return "", errors.New("invalid token")
	}
	return subject, nil
}

type stubWebhookVerifier struct {
	err error
}

func (s stubWebhookVerifier) VerifyRequest(http.Header, []byte) error {
	return s.err
}

type stubMovieCatalog struct {
	movies []tmdb.Movie
	link   string
	err    error
}

func (s stubMovieCatalog) SearchMovies(context.Context, string) ([]tmdb.Movie, error) {
	return s.movies, s.err
}

func (s stubMovieCatalog) ExternalLink(context.Context, int64) (string, error) {
	return s.link, s.err
}

type testBackend struct {
	handler http.Handler
	users   *users.Service
	recs    *recommendations.Service
	db      *gorm.DB
	nowUnix int64
}

type backendOptions struct {
	webhookErr error
	movies     stubMovieCatalog
	verifier   stubProviderVerifier
}

func newTestBackend(t *testing.T, opts backendOptions) *testBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	databasePath := filepath.Join(t.TempDir(), "server.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &recommendations.Recommendation{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	backend := &testBackend{db: db, nowUnix: 1700000000}
	clock := func() time.Time { return time.Unix(backend.nowUnix, 0) }

	userService, err := users.NewService(users.ServiceConfig{
		Database:    db,
		Clock:       clock,
		AdminEmails: []string{"admin@example.com"},
	})
	if err != nil {
		t.Fatalf("failed to create user service: %v", err)
	}
	backend.users = userService

	recService, err := recommendations.NewService(recommendations.ServiceConfig{
		Database:  db,
		Clock:     clock,
		Directory: userService,
	})
	if err != nil {
		t.Fatalf("failed to create recommendation service: %v", err)
	}
	backend.recs = recService

	ctx := context.Background()
	for _, seed := range []struct{ subject, email, name string }{
		{testAdminSubject, "admin@example.com", "Ada Admin"},
		{testAliceSubject, "alice@example.com", "Alice"},
		{testBobSubject, "bob@example.com", "Bob"},
	} {
		if _, err := userService.Sync(ctx, seed.subject, seed.email, seed.name); err != nil {
			t.Fatalf("failed to sync user %s: %v", seed.subject, err)
		}
	}

	handler, err := NewHTTPHandler(Dependencies{
		ProviderVerifier: opts.verifier,
		TokenManager: stubTokenManager{subjects: map[string]string{
			"admin-token":   testAdminSubject,
			"alice-token":   testAliceSubject,
			"bob-token":     testBobSubject,
			"unknown-token": "subject-unknown",
		}},
		WebhookVerifier: stubWebhookVerifier{err: opts.webhookErr},
		Users:           userService,
		Recommendations: recService,
		Movies:          opts.movies,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	backend.handler = handler
	return backend
}

func (b *testBackend) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	b.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func (b *testBackend) createRecommendation(t *testing.T, token string, payload map[string]any) string {
	t.Helper()
	recorder := b.do(t, http.MethodPost, "/api/recommendations", token, payload)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create failed with status %d: %s", recorder.Code, recorder.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, recorder, &created)
	return created.ID
}
