package signer

import "errors"

var (
	// ErrNilKey indicates a nil private key.
	ErrNilKey = errors.New("signer: private key is nil")

	// ErrInvalidHash indicates a message digest that is not 32 bytes.
	ErrInvalidHash = errors.New("signer: message hash must be 32 bytes")

	// ErrMalformedSignature indicates a signature whose DER framing is inconsistent.
	ErrMalformedSignature = errors.New("signer: malformed DER signature")

	// ErrInvalidKInv indicates a k-inverse buffer shorter than 32 bytes.
	ErrInvalidKInv = errors.New("signer: k-inverse buffer must hold at least 32 bytes")

	// ErrContextReleased indicates use of a signing context after Release.
	ErrContextReleased = errors.New("signer: signing context already released")

	// ErrNonceExhausted indicates no usable nonce was found.
	ErrNonceExhausted = errors.New("signer: could not derive a usable nonce")
)
