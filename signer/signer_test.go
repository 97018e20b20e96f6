package signer

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *ec.PrivateKey {
	t.Helper()
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	return priv
}

func testHash(i int) []byte {
	h := sha256.Sum256([]byte(fmt.Sprintf("digest-%d", i)))
	return h[:]
}

func verify(t *testing.T, priv *ec.PrivateKey, hash, der []byte) bool {
	t.Helper()
	pub, err := secp256k1.ParsePubKey(priv.PubKey().Compressed())
	require.NoError(t, err)
	sig, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pub)
}

// ---------------------------------------------------------------------------
// Context
// ---------------------------------------------------------------------------

func TestSign_MatchesCanonicalRFC6979(t *testing.T) {
	priv := testKey(t)
	dk := secp256k1.PrivKeyFromBytes(priv.Serialize())

	ctx := Acquire()
	defer ctx.Release()

	for i := 0; i < 16; i++ {
		hash := testHash(i)
		got, err := ctx.Sign(priv, hash)
		require.NoError(t, err)

		want := ecdsa.Sign(dk, hash).Serialize()
		assert.Equal(t, want, got, "hash %d", i)
		assert.True(t, verify(t, priv, hash, got))
	}
}

func TestSignRaw_SIsEitherCanonicalOrItsComplement(t *testing.T) {
	priv := testKey(t)
	ctx := Acquire()
	defer ctx.Release()

	n, ok := new(big.Int).SetString(curveOrderHex, 16)
	require.True(t, ok)
	sawHigh := false
	for i := 0; i < 64; i++ {
		hash := testHash(i)
		raw, err := ctx.SignRaw(priv, hash)
		require.NoError(t, err)
		require.Len(t, raw.KInv, 32)

		norm, err := Normalize(priv.Serialize(), raw.DER, hash, raw.KInv)
		require.NoError(t, err)

		_, rawS, err := splitDER(raw.DER)
		require.NoError(t, err)
		_, normS, err := splitDER(norm)
		require.NoError(t, err)

		rs := new(big.Int).SetBytes(rawS)
		ns := new(big.Int).SetBytes(normS)
		if rs.Cmp(ns) != 0 {
			sawHigh = true
			assert.False(t, IsLowS(raw.DER))
			assert.Equal(t, 0, new(big.Int).Sub(n, rs).Cmp(ns), "hash %d", i)
		}
		assert.True(t, IsLowS(norm))
		assert.True(t, verify(t, priv, hash, norm))
	}
	assert.True(t, sawHigh, "expected at least one high-S raw signature in 64 draws")
}

func TestNormalize_Idempotent(t *testing.T) {
	priv := testKey(t)
	ctx := Acquire()
	defer ctx.Release()

	for i := 0; i < 8; i++ {
		hash := testHash(i)
		raw, err := ctx.SignRaw(priv, hash)
		require.NoError(t, err)

		once, err := Normalize(priv.Serialize(), raw.DER, hash, raw.KInv)
		require.NoError(t, err)
		twice, err := Normalize(priv.Serialize(), once, hash, raw.KInv)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestNormalize_UsesTrailingKInvBytes(t *testing.T) {
	priv := testKey(t)
	hash := testHash(1)

	ctx := Acquire()
	defer ctx.Release()
	raw, err := ctx.SignRaw(priv, hash)
	require.NoError(t, err)

	padded := append(make([]byte, 40), raw.KInv...)
	a, err := Normalize(priv.Serialize(), raw.DER, hash, raw.KInv)
	require.NoError(t, err)
	b, err := Normalize(priv.Serialize(), raw.DER, hash, padded)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSignWithHashType(t *testing.T) {
	priv := testKey(t)
	hash := testHash(7)

	sig, err := SignWithHashType(priv, hash, 0x41)
	require.NoError(t, err)
	assert.Equal(t, byte(0x41), sig[len(sig)-1])
	assert.True(t, verify(t, priv, hash, sig[:len(sig)-1]))
	assert.True(t, IsLowS(sig[:len(sig)-1]))
}

func TestSign_Deterministic(t *testing.T) {
	priv := testKey(t)
	hash := testHash(3)

	a, err := SignWithHashType(priv, hash, 0x01)
	require.NoError(t, err)
	b, err := SignWithHashType(priv, hash, 0x01)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// ---------------------------------------------------------------------------
// Error paths
// ---------------------------------------------------------------------------

func TestContext_Released(t *testing.T) {
	ctx := Acquire()
	ctx.Release()
	ctx.Release()

	_, err := ctx.SignRaw(testKey(t), testHash(0))
	assert.ErrorIs(t, err, ErrContextReleased)
}

func TestSignRaw_InvalidInput(t *testing.T) {
	ctx := Acquire()
	defer ctx.Release()

	_, err := ctx.SignRaw(nil, testHash(0))
	assert.ErrorIs(t, err, ErrNilKey)

	_, err = ctx.SignRaw(testKey(t), []byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestNormalize_Malformed(t *testing.T) {
	priv := testKey(t)
	hash := testHash(0)
	kinv := make([]byte, 32)
	kinv[31] = 1

	tests := []struct {
		name string
		sig  []byte
	}{
		{"empty", nil},
		{"bad_tag", []byte{0x31, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x01}},
		{"bad_total_len", []byte{0x30, 0x07, 0x02, 0x01, 0x01, 0x02, 0x01, 0x01}},
		{"r_not_int", []byte{0x30, 0x06, 0x03, 0x01, 0x01, 0x02, 0x01, 0x01}},
		{"s_not_int", []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x03, 0x01, 0x01}},
		{"s_len_mismatch", []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x02, 0x01}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(priv.Serialize(), tc.sig, hash, kinv)
			assert.ErrorIs(t, err, ErrMalformedSignature)
			assert.False(t, IsLowS(tc.sig))
		})
	}

	t.Run("short_kinv", func(t *testing.T) {
		good := []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x01}
		_, err := Normalize(priv.Serialize(), good, hash, []byte{0x01})
		assert.ErrorIs(t, err, ErrInvalidKInv)
	})
}

func TestDERInt(t *testing.T) {
	assert.Equal(t, []byte{0x00}, derInt([]byte{0x00, 0x00}))
	assert.Equal(t, []byte{0x7f}, derInt([]byte{0x00, 0x7f}))
	assert.Equal(t, []byte{0x00, 0x80}, derInt([]byte{0x80}))
	assert.Equal(t, []byte{0x00, 0xff, 0x01}, derInt([]byte{0x00, 0x00, 0xff, 0x01}))
}

func TestEncodeDER_KeepsHighS(t *testing.T) {
	var r, s [32]byte
	r[31] = 0x01
	secp256k1.S256().Params().N.FillBytes(s[:])
	s[31]-- // n-1 is above n/2

	der, err := encodeDER(r, s)
	require.NoError(t, err)
	_, gotS, err := splitDER(der)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0x00}, s[:]...), gotS)
	assert.False(t, IsLowS(der))
}
