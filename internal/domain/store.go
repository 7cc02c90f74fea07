package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// BidStore persists the append-only public bid history.
type BidStore interface {
	Insert(ctx context.Context, bid Bid) error
	ListByAuction(ctx context.Context, auctionID uuid.UUID, opts ListOpts) ([]Bid, error)
	ListByBidder(ctx context.Context, bidder common.Address, opts ListOpts) ([]Bid, error)
}

// SettlementStore persists refund and proceeds transfer attempts.
type SettlementStore interface {
	Record(ctx context.Context, s Settlement) error
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]Settlement, error)
}

// SignalBus publishes ledger events to interested subscribers (the WebSocket
// hub, other service replicas, external consumers).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter bounds how often a key may perform an action within a window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed mutual exclusion for settlement operations
// so only one service replica runs a sweep at a time.
type LockManager interface {
	// Acquire returns an unlock function on success, or ErrLockHeld when the
	// lock is held elsewhere.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// BlobWriter stores an archive object and returns nothing but an error; keys
// are slash-separated paths inside the configured bucket.
type BlobWriter interface {
	Write(ctx context.Context, key string, data []byte, contentType string) error
}

// BlobReader fetches a previously written archive object.
type BlobReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}
