package handler

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ledgerworks/auctiond/internal/crypto"
	"github.com/ledgerworks/auctiond/internal/domain"
)

// CallerAuth resolves the caller identity of a request. When signature
// checking is enabled, the claimed address must be recoverable from the
// request's secp256k1 signature; otherwise the claimed address is trusted,
// which is only acceptable behind an authenticated gateway.
type CallerAuth struct {
	AuctionID         uuid.UUID
	RequireSignatures bool
}

// ResolveBidder validates the bid request identity: the bidder address, the
// amount, and (when required) the bid signature.
func (a CallerAuth) ResolveBidder(bidderHex, amountStr, sigHex string) (common.Address, *big.Int, error) {
	addr, err := parseAddress(bidderHex)
	if err != nil {
		return common.Address{}, nil, err
	}
	amount, err := parseAmount(amountStr)
	if err != nil {
		return common.Address{}, nil, err
	}

	if a.RequireSignatures {
		sig, err := parseSignature(sigHex)
		if err != nil {
			return common.Address{}, nil, err
		}
		payload := crypto.BidPayload{AuctionID: a.AuctionID, Bidder: addr, Amount: amount}
		ok, err := crypto.VerifyBid(payload, sig)
		if err != nil {
			return common.Address{}, nil, fmt.Errorf("bid signature: %w", err)
		}
		if !ok {
			return common.Address{}, nil, fmt.Errorf("bid signature does not match bidder %s: %w",
				addr.Hex(), domain.ErrUnauthorized)
		}
	}

	return addr, amount, nil
}

// ResolveCaller validates the identity of a privileged call. The signature,
// when required, must cover the auction ID and the method name.
func (a CallerAuth) ResolveCaller(callerHex, method, sigHex string) (common.Address, error) {
	addr, err := parseAddress(callerHex)
	if err != nil {
		return common.Address{}, err
	}

	if a.RequireSignatures {
		sig, err := parseSignature(sigHex)
		if err != nil {
			return common.Address{}, err
		}
		recovered, err := crypto.RecoverAddress(crypto.CallDigest(a.AuctionID, method), sig)
		if err != nil {
			return common.Address{}, fmt.Errorf("call signature: %w", err)
		}
		if recovered != addr {
			return common.Address{}, fmt.Errorf("call signature does not match caller %s: %w",
				addr.Hex(), domain.ErrUnauthorized)
		}
	}

	return addr, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q, expected a decimal wei value", domain.ErrInvalidAmount, s)
	}
	return v, nil
}

func parseSignature(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, fmt.Errorf("missing signature: %w", domain.ErrUnauthorized)
	}
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid signature hex: %w", err)
	}
	return sig, nil
}
