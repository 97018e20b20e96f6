// Package discovery locates the authorizer of a token domain and talks to it
// over HTTP. A domain publishes its authorizer three ways:
//
//   - _sfp._tcp.{domain} SRV records name the hosts serving the domain;
//   - a _sfp.{domain} TXT record "sfp=<pubkey hex>" pins the authorizer key;
//   - https://{domain}/.well-known/bsvalias lists the build and authorize
//     endpoint templates.
package discovery

import (
	"encoding/hex"
	"fmt"
	"net"
	"sort"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// DNSResolver defines the interface for DNS lookups.
// This allows tests to mock DNS resolution.
type DNSResolver interface {
	// LookupSRV looks up SRV records for the given service, proto, and name.
	LookupSRV(service, proto, name string) (string, []*net.SRV, error)

	// LookupTXT looks up TXT records for the given name.
	LookupTXT(name string) ([]string, error)
}

// netResolver wraps the standard net package DNS functions.
type netResolver struct{}

func (netResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return net.LookupSRV(service, proto, name)
}

func (netResolver) LookupTXT(name string) ([]string, error) {
	return net.LookupTXT(name)
}

// DefaultDNSResolver is the production DNS resolver using the net package.
var DefaultDNSResolver DNSResolver = netResolver{}

const (
	// SRVService is the SRV service label of token authorizers.
	SRVService = "sfp"

	// txtPrefix starts the authorizer key TXT record value.
	txtPrefix = "sfp="
)

// ResolveEndpoints resolves _sfp._tcp.{domain} and returns host:port pairs
// sorted by priority, then by descending weight.
func ResolveEndpoints(domain string, resolver DNSResolver) ([]string, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrDNSLookupFailed)
	}

	_, addrs, err := resolver.LookupSRV(SRVService, "tcp", domain)
	if err != nil {
		return nil, fmt.Errorf("%w: SRV lookup for _%s._tcp.%s: %w", ErrDNSLookupFailed, SRVService, domain, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no SRV records for _%s._tcp.%s", ErrNoEndpoints, SRVService, domain)
	}

	sort.SliceStable(addrs, func(i, j int) bool {
		if addrs[i].Priority != addrs[j].Priority {
			return addrs[i].Priority < addrs[j].Priority
		}
		return addrs[i].Weight > addrs[j].Weight
	})

	endpoints := make([]string, len(addrs))
	for i, srv := range addrs {
		host := strings.TrimSuffix(srv.Target, ".")
		endpoints[i] = net.JoinHostPort(host, fmt.Sprint(srv.Port))
	}
	return endpoints, nil
}

// ResolveAuthorizerKey looks up the _sfp.{domain} TXT record and returns the
// authorizer public key it pins.
func ResolveAuthorizerKey(domain string, resolver DNSResolver) (*ec.PublicKey, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrDNSLookupFailed)
	}

	name := "_sfp." + domain
	txts, err := resolver.LookupTXT(name)
	if err != nil {
		return nil, fmt.Errorf("%w: TXT lookup for %s: %w", ErrDNSLookupFailed, name, err)
	}

	var keyHex string
	for _, txt := range txts {
		txt = strings.TrimSpace(txt)
		if strings.HasPrefix(txt, txtPrefix) {
			keyHex = strings.TrimSpace(strings.TrimPrefix(txt, txtPrefix))
			break
		}
	}
	if keyHex == "" {
		return nil, fmt.Errorf("%w: no %s TXT record for %s", ErrDNSLookupFailed, txtPrefix, name)
	}
	return parseCompressedPubKey(keyHex)
}

func parseCompressedPubKey(s string) (*ec.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPubKey, err)
	}
	if len(b) != 33 {
		return nil, fmt.Errorf("%w: expected 33 bytes, got %d", ErrInvalidPubKey, len(b))
	}
	if b[0] != 0x02 && b[0] != 0x03 {
		return nil, fmt.Errorf("%w: invalid prefix byte 0x%02x", ErrInvalidPubKey, b[0])
	}
	pub, err := ec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPubKey, err)
	}
	return pub, nil
}
