package tx

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("tx: required parameter is nil")

	// ErrInsufficientFunds indicates staged inputs cannot cover outputs plus fee.
	ErrInsufficientFunds = errors.New("tx: insufficient funds")

	// ErrNoInputs indicates Build was called before any input was staged.
	ErrNoInputs = errors.New("tx: no inputs staged")

	// ErrNoOutputs indicates the build left no outputs in the transaction.
	ErrNoOutputs = errors.New("tx: transaction has no outputs")

	// ErrNoChangeScript indicates Build was called without a change destination.
	ErrNoChangeScript = errors.New("tx: change script not set")

	// ErrDustChange indicates change fell below dust and folding it into the
	// fee is disabled.
	ErrDustChange = errors.New("tx: change below dust threshold")

	// ErrInputIndex indicates an input index outside the transaction.
	ErrInputIndex = errors.New("tx: input index out of range")

	// ErrUnknownUTXO indicates an input whose previous output is not in the UTXO map.
	ErrUnknownUTXO = errors.New("tx: previous output not known")

	// ErrSigningFailed indicates a signature could not be produced or placed.
	ErrSigningFailed = errors.New("tx: signing failed")

	// ErrScriptBuild indicates script construction failed.
	ErrScriptBuild = errors.New("tx: script build failed")

	// ErrInvalidTx indicates raw transaction bytes that do not parse.
	ErrInvalidTx = errors.New("tx: invalid raw transaction")

	// ErrInvalidTxID indicates a transaction id that is not 32 bytes.
	ErrInvalidTxID = errors.New("tx: transaction id must be 32 bytes")
)
