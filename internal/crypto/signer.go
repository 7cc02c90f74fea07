package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// BidPayload is the canonical content covered by a bid signature. The digest
// binds the bid to a single auction so signatures cannot be replayed across
// auctions.
type BidPayload struct {
	AuctionID uuid.UUID
	Bidder    common.Address
	Amount    *big.Int
}

// Digest returns the Keccak-256 hash of the payload's canonical encoding:
// auction UUID bytes, bidder address bytes, then the amount as a big-endian
// unsigned integer.
func (p BidPayload) Digest() []byte {
	var amount []byte
	if p.Amount != nil {
		amount = p.Amount.Bytes()
	}
	return ethcrypto.Keccak256(p.AuctionID[:], p.Bidder.Bytes(), amount)
}

// Signer signs auction payloads with a secp256k1 private key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded private key (with or without
// 0x prefix).
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: parsing private key: %w", err)
	}
	return &Signer{
		privateKey: privateKey,
		address:    ethcrypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Address returns the address corresponding to the signer's key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignBid signs the payload digest and returns the 65-byte [R || S || V]
// signature.
func (s *Signer) SignBid(payload BidPayload) ([]byte, error) {
	sig, err := ethcrypto.Sign(payload.Digest(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: signing bid: %w", err)
	}
	return sig, nil
}

// SignDigest signs an arbitrary 32-byte digest. Used for privileged calls
// where the payload is not a bid (ending the auction, sweeping refunds).
func (s *Signer) SignDigest(digest []byte) ([]byte, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: signing digest: %w", err)
	}
	return sig, nil
}

// CallDigest returns the digest for a privileged owner call. It covers the
// auction ID and the method name so a signature for one operation cannot
// authorize another.
func CallDigest(auctionID uuid.UUID, method string) []byte {
	return ethcrypto.Keccak256(auctionID[:], []byte(method))
}

// RecoverAddress recovers the signing address from a digest and a 65-byte
// signature.
func RecoverAddress(digest []byte, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto: expected 65-byte signature, got %d bytes", len(sig))
	}
	pubKey, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: recovering public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}

// VerifyBid recovers the signer of a bid payload and reports whether it
// matches the claimed bidder.
func VerifyBid(payload BidPayload, sig []byte) (bool, error) {
	recovered, err := RecoverAddress(payload.Digest(), sig)
	if err != nil {
		return false, err
	}
	return recovered == payload.Bidder, nil
}
