// Package server assembles the HTTP + WebSocket API for the auction service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerworks/auctiond/internal/server/handler"
	"github.com/ledgerworks/auctiond/internal/server/middleware"
	"github.com/ledgerworks/auctiond/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Bids      *handler.BidHandler
	Auction   *handler.AuctionHandler
	Refunds   *handler.RefundHandler
	Transfers *handler.TransferHandler
}

// Server is the headless HTTP + WebSocket API server for the auction.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Bid endpoints.
	mux.HandleFunc("POST /api/bids", handlers.Bids.PlaceBid)
	mux.HandleFunc("GET /api/bids", handlers.Bids.ListBids)
	mux.HandleFunc("GET /api/bids/user/{address}", handlers.Bids.UserBids)
	mux.HandleFunc("GET /api/deposits/{address}", handlers.Bids.Deposits)

	// Auction status and lifecycle endpoints.
	mux.HandleFunc("GET /api/auction", handlers.Auction.Status)
	mux.HandleFunc("GET /api/auction/winner", handlers.Auction.Winner)
	mux.HandleFunc("GET /api/auction/min-bid", handlers.Bids.MinBid)
	mux.HandleFunc("POST /api/auction/end", handlers.Auction.End)
	mux.HandleFunc("POST /api/auction/proceeds", handlers.Auction.Proceeds)

	// Settlement endpoints.
	mux.HandleFunc("POST /api/refunds/sweep", handlers.Refunds.Sweep)
	mux.HandleFunc("POST /api/refunds/withdraw", handlers.Refunds.Withdraw)
	mux.HandleFunc("POST /api/refunds/partial", handlers.Refunds.Partial)
	mux.HandleFunc("GET /api/settlements", handlers.Refunds.Settlements)

	// Direct transfers are always refused.
	mux.HandleFunc("POST /api/transfers", handlers.Transfers.Receive)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Handler returns the fully assembled handler chain, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
