package discovery

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bitfsorg/libsfp-go/sfp"
	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// maxResponseSize bounds an authorizer response body.
const maxResponseSize = 4 << 20

// HTTPService is a remote authorizer reached over HTTP.
type HTTPService struct {
	domain     string
	caps       Capabilities
	client     HTTPClient
	authorizer string // pinned authorizer address, empty when unpinned
	mainnet    bool
}

// Compile-time interface check.
var _ sfp.Service = (*HTTPService)(nil)

// NewHTTPService returns a client for the authorizer of domain. When
// authorizer is non-empty, every token output of domain in a response must
// carry that authorizer address.
func NewHTTPService(domain string, caps Capabilities, client HTTPClient, authorizer string, mainnet bool) *HTTPService {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPService{
		domain:     domain,
		caps:       caps,
		client:     client,
		authorizer: authorizer,
		mainnet:    mainnet,
	}
}

// Domain returns the token domain the service authorizes.
func (s *HTTPService) Domain() string { return s.domain }

// BuildAction sends the first-round request.
func (s *HTTPService) BuildAction(raw []byte, outputs []sfp.TokenData) (*sfp.BuildResult, error) {
	req := buildRequest{Tx: hex.EncodeToString(raw), Outputs: toOutputRequests(outputs)}
	var resp buildResponse
	if err := s.post(s.caps.BuildURL, req, &resp); err != nil {
		return nil, err
	}
	result, err := hex.DecodeString(resp.Tx)
	if err != nil {
		return nil, fmt.Errorf("%w: tx hex: %w", ErrInvalidResponse, err)
	}
	if resp.SigOps == nil {
		return nil, fmt.Errorf("%w: missing sigops", ErrInvalidResponse)
	}
	if err := s.verify(result); err != nil {
		return nil, err
	}
	log.Debugf("Build round for %s returned %d signing outpoints", s.domain, resp.SigOps.Len())
	return &sfp.BuildResult{Raw: result, SigOps: resp.SigOps}, nil
}

// AuthorizeAction sends the second-round request.
func (s *HTTPService) AuthorizeAction(raw []byte) ([]byte, *chainhash.Hash, error) {
	var resp authorizeResponse
	if err := s.post(s.caps.AuthorizeURL, authorizeRequest{Tx: hex.EncodeToString(raw)}, &resp); err != nil {
		return nil, nil, err
	}
	result, err := hex.DecodeString(resp.Tx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: tx hex: %w", ErrInvalidResponse, err)
	}
	txid, err := chainhash.NewHashFromHex(resp.TxID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: txid: %w", ErrInvalidResponse, err)
	}
	if err := s.verify(result); err != nil {
		return nil, nil, err
	}
	log.Debugf("Authorize round for %s returned %s", s.domain, txid)
	return result, txid, nil
}

// verify checks that the token outputs of s.domain in raw were written by
// the pinned authorizer.
func (s *HTTPService) verify(raw []byte) error {
	if s.authorizer == "" {
		return nil
	}
	t, err := transaction.NewTransactionFromBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	for i, out := range t.Outputs {
		if out.LockingScript == nil {
			continue
		}
		data, err := sfp.ParseOutput(*out.LockingScript, s.mainnet)
		if err != nil || sfp.AuthorizerDomain(data.Alias) != s.domain {
			continue
		}
		if data.Authorizer != s.authorizer {
			return fmt.Errorf("%w: output %d of %s signed by %s, want %s",
				ErrAuthorizerMismatch, i, s.domain, data.Authorizer, s.authorizer)
		}
	}
	return nil
}

func (s *HTTPService) post(url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("discovery: marshal request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("discovery: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrInvalidResponse, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			return fmt.Errorf("%w: HTTP %d", ErrConnectionFailed, resp.StatusCode)
		}
		if known := errorOf(e.Code); known != nil {
			return fmt.Errorf("%w: %w: %s", ErrRejected, known, e.Error)
		}
		return fmt.Errorf("%w: HTTP %d: %s", ErrRejected, resp.StatusCode, e.Error)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrInvalidResponse, err)
	}
	return nil
}
