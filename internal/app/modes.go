package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerworks/auctiond/internal/server"
	"github.com/ledgerworks/auctiond/internal/server/handler"
	"github.com/ledgerworks/auctiond/internal/server/ws"
)

// ServeMode runs the auction: the HTTP + WebSocket API server with the
// WebSocket hub relaying signal bus events, blocking until the context is
// cancelled and the server has drained.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode",
		slog.String("auction_id", deps.Ledger.AuctionID().String()),
		slog.String("owner", deps.Owner.Hex()),
		slog.Time("end_time", deps.Ledger.Snapshot().EndTime),
	)

	g, ctx := errgroup.WithContext(ctx)

	auth := handler.CallerAuth{
		AuctionID:         deps.Ledger.AuctionID(),
		RequireSignatures: a.cfg.Server.RequireSignatures,
	}
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Bids:      handler.NewBidHandler(deps.Service, auth, a.logger),
		Auction:   handler.NewAuctionHandler(deps.Service, auth, a.logger),
		Refunds:   handler.NewRefundHandler(deps.Service, auth, a.logger),
		Transfers: handler.NewTransferHandler(deps.Service, a.logger),
	}

	hub := ws.NewHub(deps.Bus, deps.Service.Status, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// ArchiveMode performs a one-shot export of the auction's durable records
// (bid history, settlement ledger, status snapshot) to object storage and
// exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return errors.New("app: archive mode requires object storage (set s3.enabled)")
	}

	a.logger.InfoContext(ctx, "starting archive mode",
		slog.String("auction_id", deps.Ledger.AuctionID().String()),
	)

	res, err := deps.Archiver.Archive(ctx, deps.Service.Status())
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "archive complete",
		slog.String("auction_id", res.AuctionID.String()),
		slog.Int("bids", res.Bids),
		slog.Int("settlements", res.Settlements),
		slog.Any("keys", res.Keys),
	)
	return nil
}
