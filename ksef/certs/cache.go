package certs

import (
	"context"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "ksef.certs")

// Usage identifies what a cached certificate is used for.
type Usage string

const (
	UsageOffline        Usage = "Offline"
	UsageAuthentication Usage = "Authentication"
)

// FetchFunc retrieves the current certificate for the given usage together
// with the instant it stays valid until.
type FetchFunc func(ctx context.Context, usage Usage) (*x509.Certificate, time.Time, error)

type entry struct {
	cert    *x509.Certificate
	validTo time.Time
}

// Cache keeps certificates keyed by usage type and refetches them when they
// approach expiry. The current time is always an explicit argument so the
// cache stays deterministic under an injected clock.
type Cache struct {
	fetch       FetchFunc
	refreshSkew time.Duration

	mu      sync.RWMutex
	entries map[Usage]entry
}

type Option func(*Cache)

// WithRefreshSkew sets how long before expiry a certificate is refetched.
func WithRefreshSkew(d time.Duration) Option {
	return func(c *Cache) { c.refreshSkew = d }
}

func NewCache(fetch FetchFunc, opts ...Option) *Cache {
	c := &Cache{
		fetch:       fetch,
		refreshSkew: 2 * time.Minute,
		entries:     make(map[Usage]entry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns a certificate valid at now, fetching or refreshing it when
// missing or about to expire.
func (c *Cache) Get(ctx context.Context, usage Usage, now time.Time) (*x509.Certificate, error) {
	// szybka ścieżka: mamy ważny certyfikat?
	c.mu.RLock()
	e, ok := c.entries[usage]
	c.mu.RUnlock()

	if ok && c.valid(e, now) {
		return e.cert, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// podwójne sprawdzenie po złapaniu blokady
	if e, ok := c.entries[usage]; ok && c.valid(e, now) {
		return e.cert, nil
	}

	logger.WithField("usage", string(usage)).Debug("Fetching certificate")

	cert, validTo, err := c.fetch(ctx, usage)
	if err != nil {
		return nil, fmt.Errorf("fetch certificate for usage %s: %w", usage, err)
	}
	if cert == nil {
		return nil, fmt.Errorf("fetch returned nil certificate for usage %s", usage)
	}

	c.entries[usage] = entry{cert: cert, validTo: validTo}
	return cert, nil
}

func (c *Cache) valid(e entry, now time.Time) bool {
	if e.validTo.IsZero() {
		return false
	}
	return e.validTo.Sub(now) > c.refreshSkew
}
