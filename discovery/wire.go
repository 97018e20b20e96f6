package discovery

import (
	"errors"

	"github.com/bitfsorg/libsfp-go/sfp"
	"github.com/bitfsorg/libsfp-go/tx"
)

// Request and response bodies of the authorizer endpoints. Transactions
// travel as hex.

type outputRequest struct {
	Alias   string `json:"alias"`
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
	Notes   string `json:"notes,omitempty"`
}

type buildRequest struct {
	Tx      string          `json:"tx"`
	Outputs []outputRequest `json:"outputs"`
}

type buildResponse struct {
	Tx     string            `json:"tx"`
	SigOps *tx.SigOperations `json:"sigops"`
}

type authorizeRequest struct {
	Tx string `json:"tx"`
}

type authorizeResponse struct {
	Tx   string `json:"tx"`
	TxID string `json:"txid"`
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// rejectCodes names the authorizer errors a client can match with errors.Is.
var rejectCodes = []struct {
	code string
	err  error
}{
	{"invalid_tx", sfp.ErrInvalidTx},
	{"invalid_token", sfp.ErrInvalidToken},
	{"no_inputs", sfp.ErrNoInputs},
	{"missing_owner_sig", sfp.ErrMissingOwnerSig},
	{"unbalanced", sfp.ErrUnbalanced},
	{"multiple_mint_outputs", sfp.ErrMultipleMintOutputs},
	{"issuer_mismatch", sfp.ErrIssuerMismatch},
	{"unlinked_output", sfp.ErrUnlinkedOutput},
}

func codeOf(err error) string {
	for _, rc := range rejectCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return ""
}

func errorOf(code string) error {
	for _, rc := range rejectCodes {
		if rc.code == code {
			return rc.err
		}
	}
	return nil
}

func toOutputRequests(outputs []sfp.TokenData) []outputRequest {
	reqs := make([]outputRequest, len(outputs))
	for i, o := range outputs {
		reqs[i] = outputRequest{Alias: o.Alias, Amount: o.Amount, Address: o.Address, Notes: o.Notes}
	}
	return reqs
}

func fromOutputRequests(reqs []outputRequest) []sfp.TokenData {
	outputs := make([]sfp.TokenData, len(reqs))
	for i, r := range reqs {
		outputs[i] = sfp.TokenData{Alias: r.Alias, Amount: r.Amount, Address: r.Address, Notes: r.Notes}
	}
	return outputs
}
