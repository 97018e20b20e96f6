package bscript

import "errors"

var (
	// ErrTruncatedPush indicates a push opcode declares more bytes than remain in the script.
	ErrTruncatedPush = errors.New("bscript: push data exceeds remaining script bytes")

	// ErrCannotPush indicates a payload too large for any push-data encoding.
	ErrCannotPush = errors.New("bscript: cannot push payload of 2^32 bytes or more")

	// ErrChunkIndex indicates a chunk index beyond the end of the script.
	ErrChunkIndex = errors.New("bscript: chunk index out of range")

	// ErrChunkTooLarge indicates a SetChunk payload longer than 255 bytes.
	ErrChunkTooLarge = errors.New("bscript: chunk payload must not exceed 255 bytes")

	// ErrNotDirectPush indicates SetChunk targeted a chunk that is not a direct push.
	ErrNotDirectPush = errors.New("bscript: chunk is not a direct push")

	// ErrNotPubKeyHash indicates the script is not a pay-to-pubkey-hash locking script.
	ErrNotPubKeyHash = errors.New("bscript: not a pay-to-pubkey-hash script")

	// ErrInvalidAddress indicates an address string could not be decoded.
	ErrInvalidAddress = errors.New("bscript: invalid address")
)
