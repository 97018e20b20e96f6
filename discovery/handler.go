package discovery

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bitfsorg/libsfp-go/sfp"
)

// Endpoint paths served by Handler.
const (
	BuildPath     = "/api/sfp/build"
	AuthorizePath = "/api/sfp/authorize"
)

// maxRequestSize bounds a request body.
const maxRequestSize = 4 << 20

// Handler serves one authorizer's capability document and protocol rounds.
type Handler struct {
	auth *sfp.Authorizer
	mux  *http.ServeMux
}

// NewHandler returns the HTTP front end of auth.
func NewHandler(auth *sfp.Authorizer) *Handler {
	h := &Handler{auth: auth, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET "+WellKnownPath, h.handleWellKnown)
	h.mux.HandleFunc("POST "+BuildPath, h.handleBuild)
	h.mux.HandleFunc("POST "+AuthorizePath, h.handleAuthorize)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	base := scheme + "://" + r.Host
	writeJSON(w, http.StatusOK, wellKnown{
		BSVAlias: "1.0",
		Capabilities: map[string]interface{}{
			CapBuild:     base + BuildPath,
			CapAuthorize: base + AuthorizePath,
		},
	})
}

func (h *Handler) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	raw, ok := decodeRequest(w, r, &req, func() string { return req.Tx })
	if !ok {
		return
	}
	res, err := h.auth.BuildAction(raw, fromOutputRequests(req.Outputs))
	if err != nil {
		writeError(w, err)
		return
	}
	log.Infof("Build request from %s: %d outputs", r.RemoteAddr, len(req.Outputs))
	writeJSON(w, http.StatusOK, buildResponse{Tx: hex.EncodeToString(res.Raw), SigOps: res.SigOps})
}

func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	raw, ok := decodeRequest(w, r, &req, func() string { return req.Tx })
	if !ok {
		return
	}
	result, txid, err := h.auth.AuthorizeAction(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Infof("Authorized %s for %s", txid, r.RemoteAddr)
	writeJSON(w, http.StatusOK, authorizeResponse{Tx: hex.EncodeToString(result), TxID: txid.String()})
}

// decodeRequest decodes the JSON body into v and the hex transaction that
// txHex returns afterwards. It writes the error response itself.
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}, txHex func() string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request: " + err.Error()})
		return nil, false
	}
	raw, err := hex.DecodeString(txHex())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "invalid_tx", Error: "tx is not hex"})
		return nil, false
	}
	return raw, true
}

func writeError(w http.ResponseWriter, err error) {
	code := codeOf(err)
	status := http.StatusUnprocessableEntity
	switch {
	case code == "":
		status = http.StatusInternalServerError
	case errors.Is(err, sfp.ErrInvalidTx):
		status = http.StatusBadRequest
	}
	log.Warnf("Rejected request: %v", err)
	writeJSON(w, status, errorResponse{Code: code, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
