package httputil

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// Resolver looks up the addresses of a host. [net.DefaultResolver] satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// IsSafeURL validates an outbound URL against SSRF.
// Only http and https are allowed, and every address the host resolves to
// must be public. IP literals are checked without a lookup.
func IsSafeURL(ctx context.Context, r Resolver, rawURL string) error {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme not allowed: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		if r == nil {
			r = net.DefaultResolver
		}
		addrs, err := r.LookupIPAddr(ctx, host)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", host, err)
		}
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}
	if len(ips) == 0 {
		return fmt.Errorf("no addresses for %s", host)
	}

	for _, ip := range ips {
		if IsRestrictedIP(ip) {
			return fmt.Errorf("restricted address %s for %s", ip, host)
		}
	}
	return nil
}

// IsRestrictedIP reports whether ip is loopback, private, link-local or
// unspecified.
func IsRestrictedIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// GuardDial is a [net.Dialer] Control function that refuses connections to
// restricted addresses. It catches hosts whose DNS answer changes between
// [IsSafeURL] and the dial.
func GuardDial(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("dial %s: not an IP address", address)
	}
	if IsRestrictedIP(ip) {
		return fmt.Errorf("dial %s: restricted address", address)
	}
	return nil
}
