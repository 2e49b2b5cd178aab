package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/copperline/orderd/internal/apperr"
	"github.com/copperline/orderd/internal/auth"
	"github.com/copperline/orderd/internal/model"
	"github.com/copperline/orderd/internal/service/orders"
	"github.com/copperline/orderd/internal/storage"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db                  *storage.DB
	jwtMgr              *auth.JWTManager
	orderSvc            *orders.Service
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// OpenAPISpec is optional.
type HandlersDeps struct {
	DB                  *storage.DB
	JWTMgr              *auth.JWTManager
	OrderSvc            *orders.Service
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		db:                  d.DB,
		jwtMgr:              d.JWTMgr,
		orderSvc:            d.OrderSvc,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// error logs err when it is unclassified (an internal failure whose cause
// must stay server-side) and writes the enveloped response. Classified
// errors are the caller's fault and are logged by the logging middleware's
// status field alone.
func (h *Handlers) error(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.CodeOf(err) == apperr.CodeInternal {
		h.logger.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
		)
	}
	writeError(w, r, err)
}

// HandleAuthToken handles POST /auth/token. Exchanges a client_id and API
// key for a short-lived JWT. Unknown client IDs burn a dummy hash
// verification so response timing does not reveal which IDs exist.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req model.AuthTokenRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, decodeError(err))
		return
	}
	if err := model.ValidateClientID(req.ClientID); err != nil {
		writeError(w, r, apperr.Invalid("client_id", err.Error()))
		return
	}

	client, err := h.db.GetClientByClientID(r.Context(), req.ClientID)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if client == nil {
		auth.DummyVerify()
		writeError(w, r, apperr.New(apperr.CodeUnauthorized, "invalid credentials"))
		return
	}

	valid, err := auth.VerifyAPIKey(req.APIKey, client.APIKeyHash)
	if err != nil || !valid {
		writeError(w, r, apperr.New(apperr.CodeUnauthorized, "invalid credentials"))
		return
	}

	token, expiresAt, err := h.jwtMgr.IssueToken(*client)
	if err != nil {
		h.error(w, r, apperr.Internal(err))
		return
	}

	h.logger.Info("token issued",
		"client_id", client.ClientID,
		"role", client.Role,
		"request_id", RequestIDFromContext(r.Context()),
	)

	writeJSON(w, r, http.StatusOK, model.AuthTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pgStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		pgStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Postgres: pgStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// SeedAdmin creates the initial admin client if the clients table is empty.
func (h *Handlers) SeedAdmin(ctx context.Context, adminAPIKey string) error {
	count, err := h.db.CountClients(ctx)
	if err != nil {
		return fmt.Errorf("seed admin: count clients: %w", err)
	}
	if count > 0 {
		h.logger.Info("clients table not empty, skipping admin seed")
		return nil
	}
	if adminAPIKey == "" {
		return fmt.Errorf("seed admin: ORDERD_ADMIN_API_KEY is empty and no clients exist; set it to bootstrap initial admin access")
	}

	hash, err := auth.HashAPIKey(adminAPIKey)
	if err != nil {
		return fmt.Errorf("seed admin: hash key: %w", err)
	}

	_, err = h.db.CreateClient(ctx, model.Client{
		ClientID:   "admin",
		Role:       model.RoleAdmin,
		APIKeyHash: hash,
	})
	if err != nil {
		return fmt.Errorf("seed admin: create client: %w", err)
	}

	h.logger.Info("seeded initial admin client")
	return nil
}
