package middleware

import (
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPExtractor returns the source address of a request. Without trusted
// proxies only the peer address is used, so X-Forwarded-For cannot be
// spoofed.
type ClientIPExtractor struct {
	trusted []netip.Prefix
}

// NewClientIPExtractor creates an extractor trusting the given CIDRs or
// single addresses. Unparsable entries are skipped.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	prefixes := make([]netip.Prefix, 0, len(trustedProxies))
	for _, p := range trustedProxies {
		p = strings.TrimSpace(p)
		if prefix, err := netip.ParsePrefix(p); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(p); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return &ClientIPExtractor{trusted: prefixes}
}

// Extract returns the client address. When the peer is a trusted proxy,
// X-Forwarded-For is walked right to left and the first untrusted entry
// wins; if every entry is trusted the peer address is returned.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	peer := stripPort(r.RemoteAddr)
	if len(e.trusted) == 0 || !e.isTrusted(peer) {
		return peer
	}

	xff := r.Header.Values(HeaderXForwardedFor)
	hops := strings.Split(strings.Join(xff, ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !e.isTrusted(hop) {
			return hop
		}
	}
	return peer
}

func (e *ClientIPExtractor) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range e.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// stripPort removes the port from host:port and [v6]:port addresses.
func stripPort(addr string) string {
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().Unmap().String()
	}
	return strings.Trim(addr, "[]")
}
