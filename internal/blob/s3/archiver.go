package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerworks/auctiond/internal/domain"
)

// Narrow store interfaces required by the archiver. The Postgres stores
// satisfy these implicitly; the archiver only needs the query side.

// BidArchiveStore provides read access to the bid history for archival.
type BidArchiveStore interface {
	ListByAuction(ctx context.Context, auctionID uuid.UUID, opts domain.ListOpts) ([]domain.Bid, error)
}

// SettlementArchiveStore provides read access to settlements for archival.
type SettlementArchiveStore interface {
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]domain.Settlement, error)
}

// Archiver uploads a finished auction's full record (bid history, settlement
// ledger, final status snapshot) to object storage, then reads the objects
// back to verify the upload before reporting success.
type Archiver struct {
	writer      domain.BlobWriter
	reader      domain.BlobReader
	bids        BidArchiveStore
	settlements SettlementArchiveStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	bids BidArchiveStore,
	settlements SettlementArchiveStore,
) *Archiver {
	return &Archiver{
		writer:      writer,
		reader:      reader,
		bids:        bids,
		settlements: settlements,
	}
}

// ArchiveResult summarises one archival run.
type ArchiveResult struct {
	AuctionID   uuid.UUID `json:"auction_id"`
	Bids        int       `json:"bids"`
	Settlements int       `json:"settlements"`
	Keys        []string  `json:"keys"`
}

// Archive uploads the auction's bids, settlements, and status snapshot under
// archive/auctions/<id>/. The status snapshot is taken by the caller so the
// archiver stays decoupled from the live ledger.
func (a *Archiver) Archive(ctx context.Context, status domain.AuctionStatus) (*ArchiveResult, error) {
	auctionID := status.AuctionID

	bids, err := a.bids.ListByAuction(ctx, auctionID, domain.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive bids query: %w", err)
	}
	settlements, err := a.settlements.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive settlements query: %w", err)
	}

	result := &ArchiveResult{
		AuctionID:   auctionID,
		Bids:        len(bids),
		Settlements: len(settlements),
	}

	bidsBuf, err := marshalJSONL(bids)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive bids marshal: %w", err)
	}
	settlementsBuf, err := marshalJSONL(settlements)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive settlements marshal: %w", err)
	}
	statusBuf, err := json.Marshal(status)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive status marshal: %w", err)
	}

	uploads := []struct {
		key         string
		data        []byte
		contentType string
	}{
		{archiveKey(auctionID, "bids.jsonl"), bidsBuf, "application/x-ndjson"},
		{archiveKey(auctionID, "settlements.jsonl"), settlementsBuf, "application/x-ndjson"},
		{archiveKey(auctionID, "status.json"), statusBuf, "application/json"},
	}

	for _, up := range uploads {
		if err := a.writer.Write(ctx, up.key, up.data, up.contentType); err != nil {
			return nil, fmt.Errorf("s3blob: archive upload %s: %w", up.key, err)
		}
		result.Keys = append(result.Keys, up.key)
	}

	// Read-back verification: every uploaded object must come back with the
	// bytes we sent.
	for _, up := range uploads {
		got, err := a.reader.Read(ctx, up.key)
		if err != nil {
			return nil, fmt.Errorf("s3blob: archive verify %s: %w", up.key, err)
		}
		if !bytes.Equal(got, up.data) {
			return nil, fmt.Errorf("s3blob: archive verify %s: content mismatch (%d vs %d bytes)", up.key, len(got), len(up.data))
		}
	}

	return result, nil
}

// archiveKey builds the S3 key for one archived auction object.
//
//	archive/auctions/<auction-id>/bids.jsonl
func archiveKey(auctionID uuid.UUID, name string) string {
	return fmt.Sprintf("archive/auctions/%s/%s", auctionID, name)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON. Each
// element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
