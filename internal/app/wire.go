package app

import (
	"log/slog"

	"github.com/bondstreet/bondmatch/internal/config"
	"github.com/bondstreet/bondmatch/internal/pricing"
	"github.com/bondstreet/bondmatch/internal/server"
	"github.com/bondstreet/bondmatch/internal/server/handler"
	"github.com/bondstreet/bondmatch/internal/server/ws"
	"github.com/bondstreet/bondmatch/internal/service"
	"github.com/bondstreet/bondmatch/internal/store/memory"
)

// Dependencies bundles everything the application needs to serve requests:
// the HTTP handler set and the WebSocket hub that streams audit events.
type Dependencies struct {
	Handlers server.Handlers
	Hub      *ws.Hub
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown.
func Wire(cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// In-memory stores. The audit store doubles as the live event feed for
	// the WebSocket hub.
	instruments := memory.NewInstrumentStore()
	auctions := memory.NewAuctionStore()
	rfqs := memory.NewRFQStore()
	audit := memory.NewAuditStore()

	advisor := pricing.NewAdvisor()

	instrumentSvc := service.NewInstrumentService(instruments, logger)
	auctionSvc := service.NewAuctionService(auctions, instruments, audit, logger)
	rfqSvc := service.NewRFQService(
		rfqs, auctions, instruments, audit,
		advisor, auctionSvc, cfg.DefaultWindow(), logger,
	)
	statsSvc := service.NewStatsService(instruments, auctions, rfqs, audit)

	deps := &Dependencies{
		Handlers: server.Handlers{
			Health:      handler.NewHealthHandler(statsSvc, logger),
			Instruments: handler.NewInstrumentHandler(instrumentSvc, logger),
			Auctions:    handler.NewAuctionHandler(auctionSvc, logger),
			RFQs:        handler.NewRFQHandler(rfqSvc, logger),
		},
		Hub: ws.NewHub(audit, logger),
	}

	return deps, cleanup, nil
}
