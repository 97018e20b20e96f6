package signer

import (
	"encoding/hex"
	"fmt"

	"github.com/bitfsorg/libsfp-go/decimal"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Curve constants in hex, converted to decimal digit strings at init.
const (
	curveOrderHex = "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"
	halfOrderHex  = "7fffffffffffffffffffffffffffffff5d576e7357a4501ddfe92f46681b20a0"
)

var (
	curveOrder = mustDec(curveOrderHex)
	halfOrder  = mustDec(halfOrderHex)
)

func mustDec(h string) string {
	d, err := decimal.HexToDec(h)
	if err != nil {
		panic(err)
	}
	return d
}

// Normalize rebuilds sig with s recomputed as kinv*(e + d*r) mod N in decimal
// arithmetic and replaced by N - s when it exceeds N/2.
//
// d is the 32-byte private scalar, hash the signed digest and kinv a buffer
// whose last 32 bytes hold k^-1. The r field is located from the DER length
// bytes and copied unchanged; the s field is re-encoded from the 64-digit hex
// form of the canonical value and the sequence length is recomputed.
func Normalize(d, sig, hash, kinv []byte) ([]byte, error) {
	rField, _, err := splitDER(sig)
	if err != nil {
		return nil, err
	}
	if len(kinv) < 32 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKInv, len(kinv))
	}
	kinv = kinv[len(kinv)-32:]

	dDec, err := bytesToDec(d)
	if err != nil {
		return nil, err
	}
	rDec, err := bytesToDec(rField)
	if err != nil {
		return nil, err
	}
	eDec, err := bytesToDec(hash)
	if err != nil {
		return nil, err
	}
	kDec, err := bytesToDec(kinv)
	if err != nil {
		return nil, err
	}

	s, err := decimal.Mod(decimal.Multiply(kDec, decimal.Add(eDec, decimal.Multiply(dDec, rDec))), curveOrder)
	if err != nil {
		return nil, err
	}
	if decimal.IsSmaller(halfOrder, s) {
		s = decimal.Subtract(curveOrder, s)
	}

	sHex, err := decimal.DecToHex(s, 64)
	if err != nil {
		return nil, err
	}
	sBytes, err := hex.DecodeString(sHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	sField := derInt(sBytes)

	out := make([]byte, 0, 4+len(rField)+2+len(sField))
	out = append(out, 0x30, byte(2+len(rField)+2+len(sField)))
	out = append(out, 0x02, byte(len(rField)))
	out = append(out, rField...)
	out = append(out, 0x02, byte(len(sField)))
	out = append(out, sField...)
	return out, nil
}

// IsLowS reports whether the DER signature sig has s <= N/2.
func IsLowS(sig []byte) bool {
	_, sField, err := splitDER(sig)
	if err != nil || len(sField) > 33 {
		return false
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(sField); overflow {
		return false
	}
	return !s.IsOverHalfOrder()
}

func bytesToDec(b []byte) (string, error) {
	if len(b) == 0 {
		return decimal.Zero, nil
	}
	return decimal.HexToDec(hex.EncodeToString(b))
}
