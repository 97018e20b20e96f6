package discovery

import "errors"

var (
	// ErrDNSLookupFailed indicates a DNS SRV/TXT lookup failed.
	ErrDNSLookupFailed = errors.New("discovery: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the DNS response was not DNSSEC-validated.
	ErrDNSSECValidationFailed = errors.New("discovery: DNSSEC validation failed")

	// ErrNoEndpoints indicates no SRV records were found for the domain.
	ErrNoEndpoints = errors.New("discovery: no endpoints found")

	// ErrCapabilityDiscovery indicates .well-known/bsvalias fetch failed or
	// lacks the token capabilities.
	ErrCapabilityDiscovery = errors.New("discovery: capability discovery failed")

	// ErrInvalidPubKey indicates a public key is not a valid compressed secp256k1 key.
	ErrInvalidPubKey = errors.New("discovery: invalid compressed public key")

	// ErrConnectionFailed indicates the authorizer could not be reached.
	ErrConnectionFailed = errors.New("discovery: connection failed")

	// ErrInvalidResponse indicates the authorizer returned a malformed response.
	ErrInvalidResponse = errors.New("discovery: invalid response")

	// ErrRejected indicates the authorizer refused the request.
	ErrRejected = errors.New("discovery: authorizer rejected request")

	// ErrAuthorizerMismatch indicates token outputs written by a key other
	// than the one published for the domain.
	ErrAuthorizerMismatch = errors.New("discovery: token outputs not written by the domain's authorizer")
)
