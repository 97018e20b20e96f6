// Package signer produces ECDSA signatures over transaction digests and
// rewrites them into canonical low-S form.
//
// Signing happens inside a scoped Context: callers Acquire one, sign, and
// Release it, which wipes the nonce material used by that context. There is
// no process-wide signing state.
//
// The raw primitive deliberately leaves s un-normalized and exposes k^-1 so
// that Normalize can recompute s with exact decimal arithmetic.
package signer

import (
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// HashLen is the size of a message digest accepted for signing.
const HashLen = 32

// maxNonceIterations bounds the RFC6979 retry loop on r == 0 or s == 0.
const maxNonceIterations = 16

// RawSignature is the output of the raw sign primitive.
type RawSignature struct {
	// DER is the DER-encoded (r, s) pair. s may be above half the curve order.
	DER []byte
	// KInv is k^-1 mod N as a 32-byte big-endian buffer.
	KInv []byte
}

// Context is a single-use scope for signing operations.
type Context struct {
	nonce    secp256k1.ModNScalar
	kinv     secp256k1.ModNScalar
	released bool
}

// Acquire returns a fresh signing context. Release it when done.
func Acquire() *Context {
	return &Context{}
}

// Release wipes the nonce material held by the context. It is safe to call
// more than once.
func (c *Context) Release() {
	c.nonce.Zero()
	c.kinv.Zero()
	c.released = true
}

// SignRaw signs hash with priv using an RFC6979 deterministic nonce and
// returns the signature without low-S normalization, together with k^-1.
func (c *Context) SignRaw(priv *ec.PrivateKey, hash []byte) (*RawSignature, error) {
	if c.released {
		return nil, ErrContextReleased
	}
	if priv == nil {
		return nil, ErrNilKey
	}
	if len(hash) != HashLen {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHash, len(hash))
	}

	privBytes := priv.Serialize()
	var d secp256k1.ModNScalar
	d.SetByteSlice(privBytes)
	defer d.Zero()

	var e secp256k1.ModNScalar
	e.SetByteSlice(hash)

	for iter := uint32(0); iter < maxNonceIterations; iter++ {
		k := secp256k1.NonceRFC6979(privBytes, hash, nil, nil, iter)
		c.nonce.Set(k)
		k.Zero()

		var kG secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(&c.nonce, &kG)
		kG.ToAffine()

		var r secp256k1.ModNScalar
		r.SetBytes(kG.X.Bytes())
		if r.IsZero() {
			continue
		}

		c.kinv.InverseValNonConst(&c.nonce)

		var s secp256k1.ModNScalar
		s.Mul2(&d, &r).Add(&e).Mul(&c.kinv)
		if s.IsZero() {
			continue
		}

		der, err := encodeDER(r.Bytes(), s.Bytes())
		if err != nil {
			return nil, err
		}
		kinv := c.kinv.Bytes()
		return &RawSignature{DER: der, KInv: kinv[:]}, nil
	}
	return nil, ErrNonceExhausted
}

// Sign signs hash with priv and returns a canonical low-S DER signature.
func (c *Context) Sign(priv *ec.PrivateKey, hash []byte) ([]byte, error) {
	raw, err := c.SignRaw(priv, hash)
	if err != nil {
		return nil, err
	}
	return Normalize(priv.Serialize(), raw.DER, hash, raw.KInv)
}

// SignWithHashType signs hash inside its own context and appends the sighash
// type byte, producing the form carried in an unlocking script.
func SignWithHashType(priv *ec.PrivateKey, hash []byte, hashType byte) ([]byte, error) {
	ctx := Acquire()
	defer ctx.Release()

	sig, err := ctx.Sign(priv, hash)
	if err != nil {
		return nil, err
	}
	return append(sig, hashType), nil
}
