package service

import (
	"net"
	"strings"
)

// HostGuard admits requests whose declared host matches an allowlist entry.
// The allowlist is built once at startup and never mutated afterwards, so
// Authorize needs no synchronization. This is address-based admission
// control, not authentication.
type HostGuard struct {
	allowed map[string]struct{}
	hosts   []string
}

func NewHostGuard(hosts ...string) *HostGuard {
	g := &HostGuard{allowed: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		n := normalizeHost(h)
		if n == "" {
			continue
		}
		if _, ok := g.allowed[n]; !ok {
			g.allowed[n] = struct{}{}
			g.hosts = append(g.hosts, n)
		}
	}
	return g
}

// Authorize reports whether declaredHost case-insensitively equals an
// allowlist entry. An optional :port is ignored when comparing.
func (g *HostGuard) Authorize(declaredHost string) bool {
	_, ok := g.allowed[normalizeHost(declaredHost)]
	return ok
}

// Hosts returns the normalized allowlist entries in insertion order.
func (g *HostGuard) Hosts() []string {
	out := make([]string, len(g.hosts))
	copy(out, g.hosts)
	return out
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if host, _, err := net.SplitHostPort(h); err == nil {
		return host
	}
	return h
}
