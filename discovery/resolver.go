package discovery

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/bitfsorg/libsfp-go/sfp"
	"github.com/bsv-blockchain/go-sdk/script"
)

// Resolver finds and caches the HTTP authorizer of each token domain. Its
// Resolve method is an sfp.Resolver.
type Resolver struct {
	client  HTTPClient
	dns     DNSResolver
	mainnet bool

	// BaseURL overrides the base URL the capability document is fetched
	// from. By default the first SRV endpoint is used, falling back to
	// https://{domain}.
	BaseURL func(domain string) string

	mu       sync.Mutex
	services map[string]*HTTPService
}

// NewResolver returns a resolver using client for HTTP. When dnsResolver is
// non-nil, each domain must publish its authorizer key in DNS and every
// response is checked against it.
func NewResolver(client HTTPClient, dnsResolver DNSResolver, mainnet bool) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{
		client:   client,
		dns:      dnsResolver,
		mainnet:  mainnet,
		services: make(map[string]*HTTPService),
	}
}

// Compile-time check that Resolve fits sfp.Resolver.
var _ sfp.Resolver = (*Resolver)(nil).Resolve

// Resolve returns the authorizer service of domain.
func (r *Resolver) Resolve(domain string) (sfp.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if svc, ok := r.services[domain]; ok {
		return svc, nil
	}

	var pinned string
	if r.dns != nil {
		pub, err := ResolveAuthorizerKey(domain, r.dns)
		if err != nil {
			return nil, err
		}
		addr, err := script.NewAddressFromPublicKey(pub, r.mainnet)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPubKey, err)
		}
		pinned = addr.AddressString
	}

	caps, err := DiscoverCapabilities(r.baseURL(domain), domain, r.client)
	if err != nil {
		return nil, err
	}

	svc := NewHTTPService(domain, *caps, r.client, pinned, r.mainnet)
	r.services[domain] = svc
	log.Infof("Resolved authorizer for %s at %s", domain, caps.BuildURL)
	return svc, nil
}

func (r *Resolver) baseURL(domain string) string {
	if r.BaseURL != nil {
		return r.BaseURL(domain)
	}
	if r.dns != nil {
		if endpoints, err := ResolveEndpoints(domain, r.dns); err == nil {
			return "https://" + endpoints[0]
		}
	}
	return "https://" + domain
}
