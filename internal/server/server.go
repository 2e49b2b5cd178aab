package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/copperline/orderd/internal/auth"
	"github.com/copperline/orderd/internal/model"
	"github.com/copperline/orderd/internal/ratelimit"
	"github.com/copperline/orderd/internal/service/orders"
	"github.com/copperline/orderd/internal/storage"
)

// Server is the orderd HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Config holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): APILimiter, AuthLimiter, OpenAPISpec.
type Config struct {
	// Required dependencies.
	DB       *storage.DB
	JWTMgr   *auth.JWTManager
	OrderSvc *orders.Service
	Logger   *slog.Logger

	// Optional rate limiters (nil = disabled). APILimiter guards the order
	// routes keyed by client; AuthLimiter guards token issuance keyed by IP.
	APILimiter  ratelimit.Limiter
	AuthLimiter ratelimit.Limiter

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64

	// Optional embedded OpenAPI YAML.
	OpenAPISpec []byte
}

// New creates a new HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		JWTMgr:              cfg.JWTMgr,
		OrderSvc:            cfg.OrderSvc,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	apiRL := ratelimit.Middleware(cfg.APILimiter, "api", clientKeyFunc, reqIDFunc)
	authRL := ratelimit.Middleware(cfg.AuthLimiter, "auth", ratelimit.IPKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Token issuance (no auth required, rate limited by IP).
	mux.Handle("POST /auth/token", authRL(http.HandlerFunc(h.HandleAuthToken)))

	// Reads (reader+). The HTTP verb carries the operation: GET reads.
	readRole := requireRole(model.RoleReader)
	mux.Handle("GET /v1/orders", apiRL(readRole(http.HandlerFunc(h.HandleListOrders))))
	mux.Handle("GET /v1/orders/{order_id}", apiRL(readRole(http.HandlerFunc(h.HandleGetOrder))))
	mux.Handle("GET /v1/orders/{order_id}/payments", apiRL(readRole(http.HandlerFunc(h.HandleListPayments))))

	// Mutations (clerk+). PUT creates, POST replaces, PATCH partially
	// updates or performs a narrow action on the record.
	writeRole := requireRole(model.RoleClerk)
	mux.Handle("PUT /v1/orders", apiRL(writeRole(http.HandlerFunc(h.HandleCreateOrder))))
	mux.Handle("POST /v1/orders/{order_id}", apiRL(writeRole(http.HandlerFunc(h.HandleUpdateOrder))))
	mux.Handle("PATCH /v1/orders/{order_id}", apiRL(writeRole(http.HandlerFunc(h.HandlePatchOrder))))
	mux.Handle("PATCH /v1/orders/{order_id}/capture", apiRL(writeRole(http.HandlerFunc(h.HandleCapturePayment))))

	// Removal (admin only).
	adminOnly := requireRole(model.RoleAdmin)
	mux.Handle("DELETE /v1/orders/{order_id}", apiRL(adminOnly(http.HandlerFunc(h.HandleDeleteOrder))))

	// OpenAPI spec (no auth, no rate limit).
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// clientKeyFunc extracts the client ID from the request context for rate
// limiting. Returns empty string for admins (exempt from rate limits).
func clientKeyFunc(r *http.Request) string {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	if model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		return ""
	}
	return claims.ClientID
}

// Handlers returns the underlying Handlers for access to SeedAdmin etc.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
