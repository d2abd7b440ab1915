package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bondstreet/bondmatch/internal/server/handler"
	"github.com/bondstreet/bondmatch/internal/server/middleware"
	"github.com/bondstreet/bondmatch/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Instruments *handler.InstrumentHandler
	Auctions    *handler.AuctionHandler
	RFQs        *handler.RFQHandler
}

// Server is the HTTP + WebSocket API server for the auction engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health surface (no body parsing, no auth).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/stats", handlers.Health.Stats)

	// Instrument registry.
	mux.HandleFunc("POST /api/instruments", handlers.Instruments.Register)
	mux.HandleFunc("GET /api/instruments", handlers.Instruments.List)
	mux.HandleFunc("GET /api/instruments/{id}", handlers.Instruments.Resolve)
	mux.HandleFunc("POST /api/instruments/{id}/split", handlers.Instruments.Split)

	// Auction lifecycle.
	mux.HandleFunc("POST /api/auctions", handlers.Auctions.Open)
	mux.HandleFunc("GET /api/auctions", handlers.Auctions.List)
	mux.HandleFunc("GET /api/auctions/{id}", handlers.Auctions.Get)
	mux.HandleFunc("GET /api/auctions/{id}/result", handlers.Auctions.Result)
	mux.HandleFunc("GET /api/auctions/{id}/audit", handlers.Auctions.AuditTrail)
	mux.HandleFunc("GET /api/auctions/{id}/orders", handlers.RFQs.ListAuctionOrders)

	// RFQ order book.
	mux.HandleFunc("POST /api/rfqs", handlers.RFQs.Create)
	mux.HandleFunc("GET /api/rfqs", handlers.RFQs.List)
	mux.HandleFunc("GET /api/rfqs/{id}", handlers.RFQs.Get)
	mux.HandleFunc("PATCH /api/rfqs/{id}", handlers.RFQs.Modify)
	mux.HandleFunc("POST /api/rfqs/{id}/cancel", handlers.RFQs.Cancel)
	mux.HandleFunc("PATCH /api/rfqs/{id}/guidance", handlers.RFQs.PatchGuidance)
	mux.HandleFunc("POST /api/rfqs/{id}/guidance/refresh", handlers.RFQs.RefreshGuidance)
	mux.HandleFunc("POST /api/rfqs/{id}/quotes", handlers.RFQs.AddQuote)
	mux.HandleFunc("POST /api/rfqs/{id}/quotes/accept", handlers.RFQs.AcceptQuote)

	// WebSocket audit-event feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

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
