package discovery

import (
	"bytes"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bitfsorg/libsfp-go/bscript"
	"github.com/bitfsorg/libsfp-go/sfp"
	"github.com/bitfsorg/libsfp-go/storage"
	"github.com/bitfsorg/libsfp-go/tx"
	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

const testDomain = "auth.example"

// mockDNS serves canned SRV and TXT answers.
type mockDNS struct {
	srvs   []*net.SRV
	srvErr error
	txts   map[string][]string
}

func (m *mockDNS) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	if m.srvErr != nil {
		return "", nil, m.srvErr
	}
	return "", m.srvs, nil
}

func (m *mockDNS) LookupTXT(name string) ([]string, error) {
	txts, ok := m.txts[name]
	if !ok {
		return nil, errors.New("no such host")
	}
	return txts, nil
}

func newKeyPair(t *testing.T) tx.KeyPair {
	t.Helper()
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	kp, err := tx.NewKeyPair(priv, true)
	require.NoError(t, err)
	return kp
}

// authServer is an authorizer behind an httptest server.
type authServer struct {
	auth  *sfp.Authorizer
	store *storage.MemStore
	srv   *httptest.Server
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	store := storage.NewMemStore()
	auth, err := sfp.NewAuthorizerFromKey(priv, store, tx.DefaultOptions())
	require.NoError(t, err)
	srv := httptest.NewServer(NewHandler(auth))
	t.Cleanup(srv.Close)
	return &authServer{auth: auth, store: store, srv: srv}
}

// resolver returns a resolver pointed at the test server that pins pinKey.
func (a *authServer) resolver(pinKey *ec.PublicKey) *Resolver {
	var d DNSResolver
	if pinKey != nil {
		d = &mockDNS{
			srvErr: errors.New("no SRV"),
			txts:   map[string][]string{"_sfp." + testDomain: {"v=spf1", "sfp=" + hex.EncodeToString(pinKey.Compressed())}},
		}
	}
	r := NewResolver(a.srv.Client(), d, true)
	r.BaseURL = func(string) string { return a.srv.URL }
	return r
}

func fakeTxID(t *testing.T, b byte) *chainhash.Hash {
	t.Helper()
	h, err := chainhash.NewHash(bytes.Repeat([]byte{b}, chainhash.HashSize))
	require.NoError(t, err)
	return h
}

func fundedBuilder(t *testing.T, owner tx.KeyPair) *tx.Builder {
	t.Helper()
	s, err := bscript.ScriptFromAddress(owner.Address)
	require.NoError(t, err)
	b := tx.NewBuilder(tx.DefaultOptions())
	require.NoError(t, b.InputFromPubKeyHash(fakeTxID(t, 0x31), 0, &transaction.TransactionOutput{Satoshis: 100000, LockingScript: s}, nil))
	require.NoError(t, b.SetChangeAddress(owner.Address))
	return b
}

// ---------------------------------------------------------------------------
// Protocol rounds over HTTP
// ---------------------------------------------------------------------------

func TestMintOverHTTP(t *testing.T) {
	a := newAuthServer(t)
	r := a.resolver(a.auth.Codec().KeyPair().PublicKey)
	owner := newKeyPair(t)
	alias := "silver@" + testDomain

	b := fundedBuilder(t, owner)
	require.NoError(t, sfp.RequestTokenOutputs(b, []sfp.TokenData{{Alias: alias, Amount: 500, Address: owner.Address}}, r.Resolve))
	require.True(t, b.Build(true), "build: %v", b.LastError())
	b.SignWithKeyPairs([]tx.KeyPair{owner})

	txid, err := sfp.RequestAuthorization(b, r.Resolve)
	require.NoError(t, err)
	assert.Equal(t, b.Tx().TxID().String(), txid.String())

	asset, err := a.store.SelectAsset(alias)
	require.NoError(t, err)
	assert.Equal(t, owner.Address, asset.IssuerAddress)
	rec, err := a.store.SelectTokenUtxo(txid.String(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), rec.Amount)

	// The service is cached per domain.
	svc1, err := r.Resolve(testDomain)
	require.NoError(t, err)
	svc2, err := r.Resolve(testDomain)
	require.NoError(t, err)
	assert.Same(t, svc1, svc2)
}

func TestRejectionCarriesAuthorizerError(t *testing.T) {
	a := newAuthServer(t)
	r := a.resolver(nil)
	alias := "gold@" + testDomain
	_, err := a.store.InsertAsset(&storage.Asset{Alias: alias, IssuerAddress: newKeyPair(t).Address})
	require.NoError(t, err)

	owner := newKeyPair(t)
	b := fundedBuilder(t, owner)
	err = sfp.RequestTokenOutputs(b, []sfp.TokenData{{Alias: alias, Amount: 1, Address: owner.Address}}, r.Resolve)
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, sfp.ErrIssuerMismatch)
}

func TestPinnedKeyMismatch(t *testing.T) {
	a := newAuthServer(t)
	r := a.resolver(newKeyPair(t).PublicKey)
	owner := newKeyPair(t)

	b := fundedBuilder(t, owner)
	err := sfp.RequestTokenOutputs(b, []sfp.TokenData{{Alias: "gold@" + testDomain, Amount: 1, Address: owner.Address}}, r.Resolve)
	assert.ErrorIs(t, err, ErrAuthorizerMismatch)

	_, err = a.store.SelectAsset("gold@" + testDomain)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResolve_MissingKeyRecord(t *testing.T) {
	a := newAuthServer(t)
	r := NewResolver(a.srv.Client(), &mockDNS{txts: map[string][]string{}}, true)
	r.BaseURL = func(string) string { return a.srv.URL }

	_, err := r.Resolve(testDomain)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)

	_, err = sfp.RequestAuthorization(fundedBuilder(t, newKeyPair(t)), r.Resolve)
	assert.NoError(t, err, "a transaction without tokens needs no authorizer")
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

func TestHandler_WellKnown(t *testing.T) {
	a := newAuthServer(t)
	caps, err := DiscoverCapabilities(a.srv.URL, testDomain, a.srv.Client())
	require.NoError(t, err)
	assert.Equal(t, a.srv.URL+BuildPath, caps.BuildURL)
	assert.Equal(t, a.srv.URL+AuthorizePath, caps.AuthorizeURL)
}

func TestHandler_BadRequests(t *testing.T) {
	a := newAuthServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"not_json", BuildPath, "{", http.StatusBadRequest},
		{"not_hex", BuildPath, `{"tx":"zz"}`, http.StatusBadRequest},
		{"not_tx", AuthorizePath, `{"tx":"0102"}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := a.srv.Client().Post(a.srv.URL+tc.path, "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}

	resp, err := a.srv.Client().Get(a.srv.URL + BuildPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHTTPService_RejectedInvalidTx(t *testing.T) {
	a := newAuthServer(t)
	caps, err := DiscoverCapabilities(a.srv.URL, testDomain, a.srv.Client())
	require.NoError(t, err)
	svc := NewHTTPService(testDomain, *caps, a.srv.Client(), "", true)
	assert.Equal(t, testDomain, svc.Domain())

	_, _, err = svc.AuthorizeAction([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, sfp.ErrInvalidTx)
}

// ---------------------------------------------------------------------------
// Capability discovery
// ---------------------------------------------------------------------------

func TestDiscoverCapabilities_Errors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := DiscoverCapabilities(srv.URL, testDomain, srv.Client())
	assert.ErrorIs(t, err, ErrCapabilityDiscovery)

	_, err = DiscoverCapabilities(srv.URL, "", srv.Client())
	assert.ErrorIs(t, err, ErrCapabilityDiscovery)

	partial := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bsvalias":"1.0","capabilities":{"sfp-build":"https://{domain.tld}/b"}}`))
	}))
	defer partial.Close()
	_, err = DiscoverCapabilities(partial.URL, testDomain, partial.Client())
	assert.ErrorIs(t, err, ErrCapabilityDiscovery)

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer garbage.Close()
	_, err = DiscoverCapabilities(garbage.URL, testDomain, garbage.Client())
	assert.ErrorIs(t, err, ErrCapabilityDiscovery)
}

func TestDiscoverCapabilities_Template(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, WellKnownPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"bsvalias":"1.0","capabilities":{
			"sfp-build":"https://{domain.tld}/sfp/build",
			"sfp-authorize":"https://{domain.tld}/sfp/authorize"}}`))
	}))
	defer srv.Close()

	caps, err := DiscoverCapabilities(srv.URL+"/", testDomain, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example/sfp/build", caps.BuildURL)
	assert.Equal(t, "https://auth.example/sfp/authorize", caps.AuthorizeURL)
}

// ---------------------------------------------------------------------------
// DNS
// ---------------------------------------------------------------------------

func TestResolveEndpoints(t *testing.T) {
	m := &mockDNS{srvs: []*net.SRV{
		{Target: "backup.auth.example.", Port: 8443, Priority: 20, Weight: 5},
		{Target: "light.auth.example.", Port: 443, Priority: 10, Weight: 1},
		{Target: "heavy.auth.example.", Port: 443, Priority: 10, Weight: 9},
	}}
	got, err := ResolveEndpoints(testDomain, m)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"heavy.auth.example:443",
		"light.auth.example:443",
		"backup.auth.example:8443",
	}, got)

	_, err = ResolveEndpoints("", m)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)
	_, err = ResolveEndpoints(testDomain, &mockDNS{})
	assert.ErrorIs(t, err, ErrNoEndpoints)
	_, err = ResolveEndpoints(testDomain, &mockDNS{srvErr: errors.New("timeout")})
	assert.ErrorIs(t, err, ErrDNSLookupFailed)
}

func TestResolver_UsesSRVEndpoint(t *testing.T) {
	r := NewResolver(nil, &mockDNS{srvs: []*net.SRV{{Target: "node.auth.example.", Port: 8443}}}, true)
	assert.Equal(t, "https://node.auth.example:8443", r.baseURL(testDomain))

	r = NewResolver(nil, nil, true)
	assert.Equal(t, "https://auth.example", r.baseURL(testDomain))
}

func TestResolveAuthorizerKey(t *testing.T) {
	kp := newKeyPair(t)
	keyHex := hex.EncodeToString(kp.PublicKey.Compressed())

	m := &mockDNS{txts: map[string][]string{
		"_sfp.good.example":   {"other", " sfp=" + keyHex + " "},
		"_sfp.short.example":  {"sfp=02abcd"},
		"_sfp.prefix.example": {"sfp=05" + keyHex[2:]},
		"_sfp.none.example":   {"v=spf1 -all"},
	}}

	pub, err := ResolveAuthorizerKey("good.example", m)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey.Compressed(), pub.Compressed())

	_, err = ResolveAuthorizerKey("short.example", m)
	assert.ErrorIs(t, err, ErrInvalidPubKey)
	_, err = ResolveAuthorizerKey("prefix.example", m)
	assert.ErrorIs(t, err, ErrInvalidPubKey)
	_, err = ResolveAuthorizerKey("none.example", m)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)
	_, err = ResolveAuthorizerKey("missing.example", m)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)
	_, err = ResolveAuthorizerKey("", m)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)
}

func TestNewDNSSECResolver(t *testing.T) {
	assert.Equal(t, "8.8.8.8:53", NewDNSSECResolver("").Upstream)
	assert.Equal(t, "1.1.1.1:53", NewDNSSECResolver("1.1.1.1:53").Upstream)
}

func TestCheckAnswer(t *testing.T) {
	msg := new(dns.Msg)
	msg.SetQuestion("_sfp.auth.example.", dns.TypeTXT)
	msg.Answer = append(msg.Answer,
		&dns.TXT{Hdr: dns.RR_Header{Name: "_sfp.auth.example.", Rrtype: dns.TypeTXT, Class: dns.ClassINET}, Txt: []string{"sfp=", "02ab"}},
		&dns.SRV{Hdr: dns.RR_Header{Name: "_sfp._tcp.auth.example.", Rrtype: dns.TypeSRV, Class: dns.ClassINET}, Target: "node.auth.example.", Port: 443, Priority: 1, Weight: 2},
	)

	_, err := checkAnswer(msg, "_sfp.auth.example", dns.TypeTXT)
	assert.ErrorIs(t, err, ErrDNSSECValidationFailed)

	msg.AuthenticatedData = true
	got, err := checkAnswer(msg, "_sfp.auth.example", dns.TypeTXT)
	require.NoError(t, err)
	assert.Equal(t, []string{"sfp=02ab"}, txtRecords(got))
	srvs := srvRecords(got)
	require.Len(t, srvs, 1)
	assert.Equal(t, "node.auth.example", srvs[0].Target)
	assert.Equal(t, uint16(443), srvs[0].Port)

	msg.Rcode = dns.RcodeServerFailure
	_, err = checkAnswer(msg, "_sfp.auth.example", dns.TypeTXT)
	assert.ErrorIs(t, err, ErrDNSLookupFailed)
}

func TestDNSSECResolver_LookupTXT_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	r := NewDNSSECResolver("")
	txts, err := r.LookupTXT("cloudflare.com")
	if err != nil {
		t.Skipf("skipping: DNSSEC lookup unavailable: %v", err)
	}
	require.NotEmpty(t, txts)
}
