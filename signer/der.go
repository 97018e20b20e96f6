package signer

import (
	"fmt"
	"math/big"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// encodeDER encodes (r, s) as a DER ECDSA signature without touching s.
// Signature.Serialize would flip a high s, ToDER keeps it.
func encodeDER(r, s [32]byte) ([]byte, error) {
	sig := ec.Signature{R: new(big.Int).SetBytes(r[:]), S: new(big.Int).SetBytes(s[:])}
	der, err := sig.ToDER()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	return der, nil
}

// derInt returns the minimal DER integer body for the unsigned big-endian b.
func derInt(b []byte) []byte {
	for len(b) > 1 && b[0] == 0x00 {
		b = b[1:]
	}
	if b[0]&0x80 != 0 {
		return append([]byte{0x00}, b...)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// splitDER returns the r and s integer bodies of a DER signature, with any
// sign padding left in place.
func splitDER(sig []byte) (r, s []byte, err error) {
	if len(sig) < 8 || sig[0] != 0x30 || int(sig[1]) != len(sig)-2 {
		return nil, nil, fmt.Errorf("%w: bad sequence header", ErrMalformedSignature)
	}
	if sig[2] != 0x02 {
		return nil, nil, fmt.Errorf("%w: r is not an integer", ErrMalformedSignature)
	}
	rLen := int(sig[3])
	sHdr := 4 + rLen
	if rLen == 0 || sHdr+2 > len(sig) {
		return nil, nil, fmt.Errorf("%w: bad r length %d", ErrMalformedSignature, rLen)
	}
	if sig[sHdr] != 0x02 {
		return nil, nil, fmt.Errorf("%w: s is not an integer", ErrMalformedSignature)
	}
	sLen := int(sig[sHdr+1])
	if sLen == 0 || sHdr+2+sLen != len(sig) {
		return nil, nil, fmt.Errorf("%w: bad s length %d", ErrMalformedSignature, sLen)
	}
	return sig[4:sHdr], sig[sHdr+2:], nil
}
