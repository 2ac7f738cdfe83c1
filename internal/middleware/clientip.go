package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type peerKey struct{}

// ClientIP resolves the address a request originates from. Forwarded
// headers are honoured only when the socket peer is a trusted proxy.
type ClientIP struct {
	trusted []netip.Prefix
}

// NewClientIP accepts CIDRs or bare addresses.
func NewClientIP(trusted []string) (*ClientIP, error) {
	c := &ClientIP{}
	for _, s := range trusted {
		if p, err := netip.ParsePrefix(s); err == nil {
			c.trusted = append(c.trusted, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		addr = addr.Unmap()
		c.trusted = append(c.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return c, nil
}

// Middleware records the socket peer and sets RemoteAddr to the resolved
// client address.
func (c *ClientIP) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Value(peerKey{}).(string); !ok {
			r = r.WithContext(context.WithValue(r.Context(), peerKey{}, r.RemoteAddr))
		}
		r.RemoteAddr = c.Key(r)
		next.ServeHTTP(w, r)
	})
}

// Key returns the client address of r. It reads the peer recorded by
// Middleware, so headers rewritten further down the chain are ignored.
func (c *ClientIP) Key(r *http.Request) string {
	peer, ok := r.Context().Value(peerKey{}).(string)
	if !ok {
		peer = r.RemoteAddr
	}
	peer = hostOnly(peer)
	if !c.isTrusted(peer) {
		return peer
	}

	// Walk right to left: the rightmost untrusted hop is the client.
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			return peer
		}
		if !c.isTrusted(hop) {
			return hop
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		if _, err := netip.ParseAddr(real); err == nil {
			return real
		}
	}
	return peer
}

func (c *ClientIP) isTrusted(s string) bool {
	if c == nil {
		return false
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
