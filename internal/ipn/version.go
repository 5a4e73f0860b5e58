package ipn

import (
	"context"
	"sync"
	"time"

	"golang.org/x/mod/semver"
)

// DefaultMaxHostVersion is the first host version that no longer accepts
// IPN-created orders. Those stores use the REST order path instead.
const DefaultMaxHostVersion = "v3.0.0"

// VersionSource reports the host store's version.
// An empty version means the bridge is the store and IPN is always allowed.
type VersionSource interface {
	Version(ctx context.Context) (string, error)
}

// StaticVersion is a fixed, configured host version.
type StaticVersion string

func (v StaticVersion) Version(context.Context) (string, error) { return string(v), nil }

// CachedVersion remembers a probed version for TTL. Probe errors are not
// cached.
type CachedVersion struct {
	Source VersionSource
	TTL    time.Duration

	mu      sync.Mutex
	version string
	expires time.Time
	now     func() time.Time
}

func (c *CachedVersion) Version(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now
	if c.now != nil {
		now = c.now
	}
	if !c.expires.IsZero() && now().Before(c.expires) {
		return c.version, nil
	}
	v, err := c.Source.Version(ctx)
	if err != nil {
		return "", err
	}
	c.version = v
	c.expires = now().Add(c.TTL)
	return v, nil
}

// hostSupportsIPN reports whether version is below max.
// Versions that do not parse as semver are treated as supported.
func hostSupportsIPN(version, max string) bool {
	if version == "" {
		return true
	}
	v := normalizeVersion(version)
	m := normalizeVersion(max)
	if !semver.IsValid(v) || !semver.IsValid(m) {
		return true
	}
	return semver.Compare(v, m) < 0
}

// normalizeVersion adds the "v" prefix semver parsing needs.
func normalizeVersion(v string) string {
	if v == "" || v[0] == 'v' {
		return v
	}
	return "v" + v
}
