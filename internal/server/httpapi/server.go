// Package httpapi exposes the CareerVault REST API handlers.
package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kseleznyov/careervault/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth   service.AuthService
	vaults service.VaultService
	log    *zap.Logger
}

// New constructs the API server with injected services.
func New(auth service.AuthService, vaults service.VaultService, log *zap.Logger) *Server {
	return &Server{auth: auth, vaults: vaults, log: log}
}

// Handler returns the routed handler wrapped in recovery and logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	mux.Handle("GET /api/session", s.requireAuth(http.HandlerFunc(s.handleSession)))
	mux.Handle("GET /api/vault", s.requireAuth(http.HandlerFunc(s.handleGetVault)))
	mux.Handle("PUT /api/vault", s.requireAuth(http.HandlerFunc(s.handlePutVault)))
	mux.Handle("POST /api/change-password", s.requireAuth(http.HandlerFunc(s.handleChangePassword)))

	return recoverMiddleware(s.log, loggingMiddleware(s.log, mux))
}
