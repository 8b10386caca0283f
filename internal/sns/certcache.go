package sns

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/ignite/ses-gateway/internal/pkg/httpretry"
)

// fetchTimeout bounds certificate and subscription-confirmation fetches.
const fetchTimeout = 10 * time.Second

// Cert and confirmation fetches hit Amazon endpoints that occasionally
// return transient 5xx; a couple of retries ride those out.
var defaultHTTPClient httpretry.HTTPDoer = httpretry.NewRetryClient(
	&http.Client{Timeout: fetchTimeout}, 2)

// Amazon publishes signing certificates only from SNS regional endpoints.
// Anything else is rejected before a single byte goes over the wire; this is
// what prevents signature bypass via an attacker-hosted certificate.
var snsHostPattern = regexp.MustCompile(`^sns\.[a-z0-9-]+\.amazonaws\.com(\.cn)?$`)

// IsTrustedCertURL reports whether a SigningCertURL points at a legitimate
// SNS endpoint over HTTPS.
func IsTrustedCertURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "https" {
		return false
	}
	return snsHostPattern.MatchString(u.Host)
}

// CertCache fetches, parses and caches SNS signing certificates keyed by
// source URL. Entries live for the process lifetime; certificates rotate
// rarely enough that no TTL is needed, and Clear exists for test isolation.
//
// Concurrent misses for the same URL may each fetch the certificate. That
// duplication is harmless; the last writer wins and subsequent reads hit the
// cache.
type CertCache struct {
	mu     sync.RWMutex
	certs  map[string]*x509.Certificate
	client httpretry.HTTPDoer
}

// NewCertCache creates an empty certificate cache. A nil client falls back
// to a retrying default with a 10 second timeout.
func NewCertCache(client httpretry.HTTPDoer) *CertCache {
	if client == nil {
		client = defaultHTTPClient
	}
	return &CertCache{
		certs:  make(map[string]*x509.Certificate),
		client: client,
	}
}

// Get returns the certificate for certURL, fetching and caching it on miss.
// The URL is checked against the trusted SNS host pattern before any network
// call.
func (c *CertCache) Get(ctx context.Context, certURL string) (*x509.Certificate, error) {
	if !IsTrustedCertURL(certURL) {
		return nil, fmt.Errorf("%w: untrusted certificate URL %q", ErrValidation, certURL)
	}

	c.mu.RLock()
	cert, ok := c.certs[certURL]
	c.mu.RUnlock()
	if ok {
		return cert, nil
	}

	cert, err := c.fetch(ctx, certURL)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.certs[certURL] = cert
	c.mu.Unlock()
	return cert, nil
}

// Clear drops all cached certificates.
func (c *CertCache) Clear() {
	c.mu.Lock()
	c.certs = make(map[string]*x509.Certificate)
	c.mu.Unlock()
}

func (c *CertCache) fetch(ctx context.Context, certURL string) (*x509.Certificate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, certURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch certificate: %v", ErrValidation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: certificate endpoint returned %d", ErrValidation, resp.StatusCode)
	}

	pemBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read certificate: %v", ErrValidation, err)
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: certificate is not PEM encoded", ErrValidation)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse certificate: %v", ErrValidation, err)
	}
	return cert, nil
}
