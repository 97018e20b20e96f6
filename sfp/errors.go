package sfp

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("sfp: required parameter is nil")

	// ErrNotToken indicates a script that does not carry the sfp@ version tag.
	ErrNotToken = errors.New("sfp: not a token output")

	// ErrInvalidToken indicates a token script or field that is malformed.
	ErrInvalidToken = errors.New("sfp: malformed token data")

	// ErrInvalidKey indicates an authorizer key that cannot be decoded.
	ErrInvalidKey = errors.New("sfp: invalid authorizer key")

	// ErrInvalidTx indicates raw transaction bytes that do not parse.
	ErrInvalidTx = errors.New("sfp: invalid raw transaction")

	// ErrNoInputs indicates token outputs were requested for a transaction
	// with no inputs to link them to.
	ErrNoInputs = errors.New("sfp: transaction has no inputs")

	// ErrMissingOwnerSig indicates a token input without its owner signature.
	ErrMissingOwnerSig = errors.New("sfp: token input is not signed by its owner")

	// ErrUnbalanced indicates token amounts that do not balance and no issuer
	// signature on every input.
	ErrUnbalanced = errors.New("sfp: input and output amounts differ without issuer signature")

	// ErrMultipleMintOutputs indicates a mint with more than one output per alias.
	ErrMultipleMintOutputs = errors.New("sfp: mint has more than one output per asset")

	// ErrIssuerMismatch indicates a mint of an alias bound to another issuer.
	ErrIssuerMismatch = errors.New("sfp: asset alias is bound to a different issuer")

	// ErrUnlinkedOutput indicates a token output whose linked outpoint is not
	// spent by the transaction.
	ErrUnlinkedOutput = errors.New("sfp: token output link does not match any input")

	// ErrNoAuthorizer indicates no authorizer could be resolved for a domain.
	ErrNoAuthorizer = errors.New("sfp: no authorizer for domain")

	// ErrStore indicates the asset store failed.
	ErrStore = errors.New("sfp: store operation failed")
)
