package discovery

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Capability keys published in .well-known/bsvalias.
const (
	CapBuild     = "sfp-build"
	CapAuthorize = "sfp-authorize"
)

// domainPlaceholder is replaced with the domain in capability templates.
const domainPlaceholder = "{domain.tld}"

// WellKnownPath is the capability document path.
const WellKnownPath = "/.well-known/bsvalias"

// maxDocSize bounds the capability document read.
const maxDocSize = 64 << 10

// HTTPClient defines the interface for HTTP requests.
// This allows tests to mock HTTP calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Capabilities holds a domain's authorizer endpoints.
type Capabilities struct {
	BuildURL     string
	AuthorizeURL string
}

// wellKnown is the JSON structure of .well-known/bsvalias.
type wellKnown struct {
	BSVAlias     string                 `json:"bsvalias"`
	Capabilities map[string]interface{} `json:"capabilities"`
}

// DiscoverCapabilities fetches baseURL/.well-known/bsvalias and returns the
// endpoint templates for domain with the domain filled in. baseURL is
// usually "https://" + domain.
func DiscoverCapabilities(baseURL, domain string, client HTTPClient) (*Capabilities, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrCapabilityDiscovery)
	}

	url := strings.TrimSuffix(baseURL, "/") + WellKnownPath
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapabilityDiscovery, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrCapabilityDiscovery, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned status %d", ErrCapabilityDiscovery, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrCapabilityDiscovery, err)
	}
	var wk wellKnown
	if err := json.Unmarshal(body, &wk); err != nil {
		return nil, fmt.Errorf("%w: parsing JSON: %w", ErrCapabilityDiscovery, err)
	}

	caps := &Capabilities{}
	if s, ok := wk.Capabilities[CapBuild].(string); ok {
		caps.BuildURL = strings.ReplaceAll(s, domainPlaceholder, domain)
	}
	if s, ok := wk.Capabilities[CapAuthorize].(string); ok {
		caps.AuthorizeURL = strings.ReplaceAll(s, domainPlaceholder, domain)
	}
	if caps.BuildURL == "" || caps.AuthorizeURL == "" {
		return nil, fmt.Errorf("%w: %s does not publish %s and %s", ErrCapabilityDiscovery, domain, CapBuild, CapAuthorize)
	}
	return caps, nil
}
