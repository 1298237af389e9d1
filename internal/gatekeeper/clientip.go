package gatekeeper

import (
	"net"
	"net/http"
	"strings"
)

// ParseCIDRs parses CIDRs and bare addresses; bare addresses become single
// host networks. Invalid entries are skipped.
func ParseCIDRs(entries []string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(entries))
	for _, part := range entries {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			if _, cidr, err := net.ParseCIDR(part); err == nil {
				out = append(out, cidr)
			}
			continue
		}
		ip := net.ParseIP(part)
		if ip == nil {
			continue
		}
		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}
		out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return out
}

// clientIP identifies the caller by remote address. Forwarding headers are
// honored only when the remote address is a trusted proxy.
func (g *Gatekeeper) clientIP(r *http.Request) string {
	remoteIP := parseIP(r.RemoteAddr)
	if remoteIP == "" {
		remoteIP = r.RemoteAddr
	}
	if remoteIP != "" && g.isTrustedProxy(remoteIP) {
		if candidate := g.forwardedFor(r.Header.Get("X-Forwarded-For")); candidate != "" {
			return candidate
		}
		if realIP := parseIP(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}
	if remoteIP == "" {
		return "unknown"
	}
	return remoteIP
}

// forwardedFor walks X-Forwarded-For from the right and returns the first hop
// that is not a trusted proxy. Entries left of it are client supplied. An
// unparseable hop ends the walk with no result.
func (g *Gatekeeper) forwardedFor(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	parts := strings.Split(header, ",")
	last := ""
	for i := len(parts) - 1; i >= 0; i-- {
		ip := parseIP(parts[i])
		if ip == "" {
			return ""
		}
		if !g.isTrustedProxy(ip) {
			return ip
		}
		last = ip
	}
	return last
}

func (g *Gatekeeper) isTrustedProxy(ipStr string) bool {
	if len(g.trusted) == 0 {
		return false
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range g.trusted {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

func parseIP(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	ip := net.ParseIP(strings.Trim(addr, "[]"))
	if ip == nil {
		return ""
	}
	return ip.String()
}
