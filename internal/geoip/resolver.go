// Package geoip resolves client IPs to coordinates so estimate requests can
// ask for an audience "around me" without supplying an explicit geo center.
package geoip

import (
	"net"
	"sync"
	"time"

	"github.com/radiusdt/vector-reach/internal/geo"
	"github.com/radiusdt/vector-reach/internal/metrics"
)

// GeoInfo holds geographic information for an IP.
type GeoInfo struct {
	Country     string
	CountryCode string
	Region      string
	City        string
	PostalCode  string
	Latitude    float64
	Longitude   float64
	Timezone    string
}

// Provider interface for IP geolocation.
type Provider interface {
	Lookup(ip string) (*GeoInfo, error)
	Close() error
}

// Resolver performs cached IP-to-location lookups.
type Resolver struct {
	provider Provider
	cache    *lookupCache
	metrics  *metrics.Metrics
}

// lookupCache caches geo lookups.
type lookupCache struct {
	mu      sync.RWMutex
	data    map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	info      *GeoInfo
	expiresAt time.Time
}

// NewResolver creates a resolver over the given provider.
func NewResolver(provider Provider, cacheSize int, cacheTTL time.Duration, m *metrics.Metrics) *Resolver {
	return &Resolver{
		provider: provider,
		cache: &lookupCache{
			data:    make(map[string]*cacheEntry),
			maxSize: cacheSize,
			ttl:     cacheTTL,
		},
		metrics: m,
	}
}

// Resolve returns the location for an IP, or nil when the IP cannot be
// located. Lookups are cached.
func (r *Resolver) Resolve(ip string) *GeoInfo {
	if ip == "" || r.provider == nil {
		return nil
	}

	start := time.Now()
	if info, ok := r.cache.get(ip); ok {
		if r.metrics != nil {
			r.metrics.RecordGeoLookup(true, time.Since(start))
		}
		return info
	}

	info, err := r.provider.Lookup(ip)
	if err != nil || info == nil {
		return nil
	}

	r.cache.set(ip, info)
	if r.metrics != nil {
		r.metrics.RecordGeoLookup(false, time.Since(start))
	}

	return info
}

// Center resolves an IP into a geo center point, reporting false when the
// IP cannot be located or resolves without usable coordinates.
func (r *Resolver) Center(ip string) (geo.Point, bool) {
	info := r.Resolve(ip)
	if info == nil {
		return geo.Point{}, false
	}
	p := geo.Point{Latitude: info.Latitude, Longitude: info.Longitude}
	if !p.Valid() || (p.Latitude == 0 && p.Longitude == 0) {
		return geo.Point{}, false
	}
	return p, true
}

// Close releases the underlying provider.
func (r *Resolver) Close() error {
	if r.provider != nil {
		return r.provider.Close()
	}
	return nil
}

func (c *lookupCache) get(ip string) (*GeoInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[ip]
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		return nil, false
	}

	return entry.info, true
}

func (c *lookupCache) set(ip string, info *GeoInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict if at capacity (simple FIFO)
	if len(c.data) >= c.maxSize {
		for k := range c.data {
			delete(c.data, k)
			break
		}
	}

	c.data[ip] = &cacheEntry{
		info:      info,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// MockProvider is a simple geo provider for testing.
type MockProvider struct {
	data map[string]*GeoInfo
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		data: make(map[string]*GeoInfo),
	}
}

func (m *MockProvider) AddEntry(ip string, info *GeoInfo) {
	m.data[ip] = info
}

func (m *MockProvider) Lookup(ip string) (*GeoInfo, error) {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return nil, nil
	}

	if info, ok := m.data[ip]; ok {
		return info, nil
	}
	return nil, nil
}

func (m *MockProvider) Close() error {
	return nil
}
