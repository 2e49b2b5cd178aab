package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copperline/orderd/internal/auth"
	"github.com/copperline/orderd/internal/model"
	"github.com/copperline/orderd/internal/service/orders"
	"github.com/copperline/orderd/internal/storage"
)

func newTestServer(t *testing.T, store orders.Store) (*Server, *auth.JWTManager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtMgr, err := auth.NewJWTManager("", "", time.Hour) // ephemeral keypair
	require.NoError(t, err)

	srv := New(Config{
		JWTMgr:              jwtMgr,
		OrderSvc:            orders.New(store, logger),
		Logger:              logger,
		Port:                0,
		MaxRequestBodyBytes: 1 << 20,
		Version:             "test",
	})
	return srv, jwtMgr
}

func tokenFor(t *testing.T, jwtMgr *auth.JWTManager, role model.ClientRole) string {
	t.Helper()
	token, _, err := jwtMgr.IssueToken(model.Client{ClientID: "test-" + string(role), Role: role})
	require.NoError(t, err)
	return token
}

func TestServer_MissingTokenIs401(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
}

func TestServer_GarbageTokenIs401(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	r := httptest.NewRequest(http.MethodGet, "/v1/orders", nil)
	r.Header.Set("Authorization", "Bearer not.a.jwt")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_RoleGuards(t *testing.T) {
	srv, jwtMgr := newTestServer(t, &stubStore{
		page: storage.OrderPage{Orders: []model.Order{}},
	})

	tests := []struct {
		name   string
		method string
		path   string
		role   model.ClientRole
		want   int
	}{
		{"reader can list", http.MethodGet, "/v1/orders", model.RoleReader, http.StatusOK},
		{"reader cannot create", http.MethodPut, "/v1/orders", model.RoleReader, http.StatusForbidden},
		{"reader cannot delete", http.MethodDelete, "/v1/orders/0b961651-7971-4b51-b1f7-17d56d0a42b6", model.RoleReader, http.StatusForbidden},
		{"clerk cannot delete", http.MethodDelete, "/v1/orders/0b961651-7971-4b51-b1f7-17d56d0a42b6", model.RoleClerk, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			r.Header.Set("Authorization", "Bearer "+tokenFor(t, jwtMgr, tt.role))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, r)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServer_RequestIDPropagation(t *testing.T) {
	srv, jwtMgr := newTestServer(t, &stubStore{
		page: storage.OrderPage{Orders: []model.Order{}},
	})

	r := httptest.NewRequest(http.MethodGet, "/v1/orders", nil)
	r.Header.Set("Authorization", "Bearer "+tokenFor(t, jwtMgr, model.RoleReader))
	r.Header.Set("X-Request-ID", "req-abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, r)

	assert.Equal(t, "req-abc-123", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), "req-abc-123", "request ID must appear in the response meta")
}

func TestServer_SecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t, &stubStore{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestServer_OpenAPIServedWithoutAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtMgr, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)
	srv := New(Config{
		JWTMgr:      jwtMgr,
		OrderSvc:    orders.New(&stubStore{}, logger),
		Logger:      logger,
		OpenAPISpec: []byte("openapi: 3.0.3\n"),
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")
}

// PUT creates, POST replaces: the mux must not cross-wire the two.
func TestServer_VerbMapping(t *testing.T) {
	existing := &model.Order{CustomerName: "Ada", Status: model.StatusPendingPayment}
	srv, jwtMgr := newTestServer(t, &stubStore{order: existing})
	token := tokenFor(t, jwtMgr, model.RoleClerk)

	// POST to the collection (no id) is not a route.
	r := httptest.NewRequest(http.MethodPost, "/v1/orders", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, r)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// PUT to a single order is not a route either.
	r = httptest.NewRequest(http.MethodPut, "/v1/orders/0b961651-7971-4b51-b1f7-17d56d0a42b6", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, r)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
