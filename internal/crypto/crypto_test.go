package crypto

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "correct horse")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "right")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptRejectsBadKey(t *testing.T) {
	_, err := EncryptKey("not hex", "pw")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "pw")
	assert.Error(t, err, "short key should be rejected")

	_, err = EncryptKey(testKeyHex, "")
	assert.Error(t, err, "empty password should be rejected")
}

func TestLoadKeyRawTakesPrecedence(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex, EncryptedKeyPath: "/nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "owner.key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	assert.Error(t, err)
}

func TestSignAndRecoverBid(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	payload := BidPayload{
		AuctionID: uuid.New(),
		Bidder:    signer.Address(),
		Amount:    big.NewInt(12345),
	}

	sig, err := signer.SignBid(payload)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	ok, err := VerifyBid(payload, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyBidRejectsTamperedAmount(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	payload := BidPayload{
		AuctionID: uuid.New(),
		Bidder:    signer.Address(),
		Amount:    big.NewInt(100),
	}
	sig, err := signer.SignBid(payload)
	require.NoError(t, err)

	payload.Amount = big.NewInt(200)
	ok, err := VerifyBid(payload, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyBidRejectsWrongBidder(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	other, err := NewSigner("8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63")
	require.NoError(t, err)

	payload := BidPayload{
		AuctionID: uuid.New(),
		Bidder:    other.Address(),
		Amount:    big.NewInt(100),
	}
	sig, err := signer.SignBid(payload)
	require.NoError(t, err)

	ok, err := VerifyBid(payload, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCallDigestBindsMethod(t *testing.T) {
	id := uuid.New()
	assert.NotEqual(t, CallDigest(id, "end"), CallDigest(id, "sweep"))
}

func TestRecoverAddressBadSignature(t *testing.T) {
	_, err := RecoverAddress(make([]byte, 32), []byte("short"))
	assert.Error(t, err)
}
