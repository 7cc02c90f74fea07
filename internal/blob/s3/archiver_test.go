package s3blob

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/auctiond/internal/domain"
)

type memBlob struct {
	objects map[string][]byte
	corrupt bool
}

func newMemBlob() *memBlob {
	return &memBlob{objects: make(map[string][]byte)}
}

func (m *memBlob) Write(_ context.Context, key string, data []byte, _ string) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	if m.corrupt && len(stored) > 0 {
		stored[0] ^= 0xff
	}
	m.objects[key] = stored
	return nil
}

func (m *memBlob) Read(_ context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

type memBidStore struct{ bids []domain.Bid }

func (m *memBidStore) ListByAuction(_ context.Context, _ uuid.UUID, _ domain.ListOpts) ([]domain.Bid, error) {
	return m.bids, nil
}

type memSettlementStore struct{ settlements []domain.Settlement }

func (m *memSettlementStore) ListByAuction(_ context.Context, _ uuid.UUID) ([]domain.Settlement, error) {
	return m.settlements, nil
}

func TestArchiveUploadsAndVerifies(t *testing.T) {
	auctionID := uuid.New()
	bidder := common.HexToAddress("0x1111111111111111111111111111111111111111")

	blob := newMemBlob()
	bids := &memBidStore{bids: []domain.Bid{
		{ID: uuid.New(), AuctionID: auctionID, Bidder: bidder, Amount: big.NewInt(100), PlacedAt: time.Now()},
		{ID: uuid.New(), AuctionID: auctionID, Bidder: bidder, Amount: big.NewInt(200), PlacedAt: time.Now()},
	}}
	settlements := &memSettlementStore{settlements: []domain.Settlement{
		{ID: uuid.New(), AuctionID: auctionID, Kind: domain.SettlementRefund, Account: bidder, Amount: big.NewInt(98), Succeeded: true, SettledAt: time.Now()},
	}}

	arch := NewArchiver(blob, blob, bids, settlements)

	result, err := arch.Archive(context.Background(), domain.AuctionStatus{
		AuctionID: auctionID,
		Ended:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Bids)
	assert.Equal(t, 1, result.Settlements)
	require.Len(t, result.Keys, 3)

	for _, key := range result.Keys {
		assert.Contains(t, blob.objects, key)
	}
	assert.Contains(t, result.Keys[0], auctionID.String())
}

func TestArchiveVerifyFailure(t *testing.T) {
	blob := newMemBlob()
	blob.corrupt = true

	arch := NewArchiver(blob, blob, &memBidStore{}, &memSettlementStore{})

	_, err := arch.Archive(context.Background(), domain.AuctionStatus{AuctionID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify")
}
