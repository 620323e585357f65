package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/server"
)

// --- Mock types ---

type mockPinger struct{ err error }

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

type mockStorage struct{}

func (m *mockStorage) GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://example.com/download/" + key, nil
}

// --- Helpers ---

const (
	testSecret  = "test-secret"
	testUserID  = "550e8400-e29b-41d4-a716-446655440000"
	testVideoID = "6f1c2b3a-4d5e-4f60-8a7b-9c0d1e2f3a4b"
)

func newServerWithoutDB() *server.Server {
	return server.New(server.Config{})
}

func newServerWithDB(t *testing.T, cfg server.Config) (*server.Server, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(func() { mock.Close() })

	cfg.DB = mock
	cfg.Pinger = &mockPinger{err: nil}
	cfg.Storage = &mockStorage{}
	cfg.JWTSecret = testSecret
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://localhost:8080"
	}
	srv := server.New(cfg)
	t.Cleanup(srv.Close)
	return srv, mock
}

func executeRequest(srv *server.Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func executeAuthenticated(t *testing.T, srv *server.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.GenerateAccessToken(testSecret, testUserID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// --- Health Endpoint ---

func TestHealthEndpointReturnsOK(t *testing.T) {
	srv := newServerWithoutDB()
	rec := executeRequest(srv, http.MethodGet, "/api/health")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	expected := `{"status":"ok"}`
	if rec.Body.String() != expected {
		t.Errorf("expected body %q, got %q", expected, rec.Body.String())
	}
	if contentType := rec.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("expected Content-Type %q, got %q", "application/json", contentType)
	}
}

func TestHealthEndpointWithPingFailure(t *testing.T) {
	srv := server.New(server.Config{
		Pinger: &mockPinger{err: errors.New("connection refused")},
	})
	rec := executeRequest(srv, http.MethodGet, "/api/health")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}

	expected := `{"status":"unhealthy","error":"database unreachable"}`
	if rec.Body.String() != expected {
		t.Errorf("expected body %q, got %q", expected, rec.Body.String())
	}
}

// --- API docs ---

func TestDocsDisabledByDefault(t *testing.T) {
	srv := newServerWithoutDB()
	rec := executeRequest(srv, http.MethodGet, "/api/docs/openapi.yaml")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 when docs are disabled, got %d", rec.Code)
	}
}

func TestDocsEnabled(t *testing.T) {
	srv := server.New(server.Config{EnableDocs: true})

	rec := executeRequest(srv, http.MethodGet, "/api/docs/openapi.yaml")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/api/playlists/{slug}") {
		t.Error("expected openapi.yaml to describe the playlist endpoint")
	}

	rec = executeRequest(srv, http.MethodGet, "/api/docs")
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "cdn.jsdelivr.net") {
		t.Errorf("docs page should carry its own CSP, got %q", csp)
	}
}

// --- Route registration ---

func TestNilDBEngagementRoutesNotRegistered(t *testing.T) {
	srv := newServerWithoutDB()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/playlists/morning"},
		{http.MethodPost, "/api/videos/" + testVideoID + "/view"},
		{http.MethodPost, "/api/reactions/" + testVideoID + "/like"},
		{http.MethodPost, "/api/bookmarks/" + testVideoID},
		{http.MethodGet, "/api/comments/" + testVideoID},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			rec := executeRequest(srv, route.method, route.path)
			if rec.Code != http.StatusNotFound {
				t.Errorf("expected 404 for %s %s without DB, got %d", route.method, route.path, rec.Code)
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _ := newServerWithDB(t, server.Config{})

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/reactions/" + testVideoID},
		{http.MethodPost, "/api/reactions/" + testVideoID + "/like"},
		{http.MethodPost, "/api/reactions/" + testVideoID + "/dislike"},
		{http.MethodGet, "/api/bookmarks/" + testVideoID + "/check"},
		{http.MethodPost, "/api/bookmarks/" + testVideoID},
		{http.MethodPost, "/api/comments/" + testVideoID},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			rec := executeRequest(srv, route.method, route.path)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestPublicCommentCountDoesNotRequireToken(t *testing.T) {
	srv, mock := newServerWithDB(t, server.Config{})

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM comments`).
		WithArgs(testVideoID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	rec := executeRequest(srv, http.MethodGet, "/api/comments/"+testVideoID+"/count")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.TrimSpace(rec.Body.String()) != `{"count":3}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestBookmarkToggleThroughServer(t *testing.T) {
	srv, mock := newServerWithDB(t, server.Config{})

	mock.ExpectExec(`DELETE FROM bookmarks`).
		WithArgs(testUserID, testVideoID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO bookmarks`).
		WithArgs(testUserID, testVideoID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := executeAuthenticated(t, srv, http.MethodPost, "/api/bookmarks/"+testVideoID, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.TrimSpace(rec.Body.String()) != `{"bookmarked":true}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestActionsAreRateLimitedPerUser(t *testing.T) {
	srv, mock := newServerWithDB(t, server.Config{ActionsPerSecond: 0.001, ActionsBurst: 1})

	mock.ExpectExec(`DELETE FROM bookmarks`).
		WithArgs(testUserID, testVideoID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	first := executeAuthenticated(t, srv, http.MethodPost, "/api/bookmarks/"+testVideoID, "")
	if first.Code != http.StatusOK {
		t.Fatalf("expected first toggle to pass, got %d", first.Code)
	}

	second := executeAuthenticated(t, srv, http.MethodPost, "/api/bookmarks/"+testVideoID, "")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

// --- CORS ---

func TestCORSPreflight(t *testing.T) {
	srv, _ := newServerWithDB(t, server.Config{AllowedOrigins: []string{"https://player.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/reactions/"+testVideoID+"/like", nil)
	req.Header.Set("Origin", "https://player.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://player.example.com" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected preflight 200, got %d", rec.Code)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	srv, _ := newServerWithDB(t, server.Config{AllowedOrigins: []string{"https://player.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header for unknown origin, got %q", got)
	}
}

// --- Security headers ---

func TestSecurityHeadersOnAPI(t *testing.T) {
	srv, _ := newServerWithDB(t, server.Config{S3PublicEndpoint: "https://storage.example.com"})
	rec := executeRequest(srv, http.MethodGet, "/api/health")

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got == "" {
		t.Error("expected HSTS for https base URL")
	}
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "https://storage.example.com") {
		t.Errorf("expected storage endpoint in CSP, got %s", csp)
	}
}
