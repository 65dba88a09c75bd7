// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package middleware holds the cross-cutting HTTP decorators mounted in front of
every route: correlation ids, client address resolution, access logging,
metrics, the per-IP throttle, panic recovery and CORS.

Authentication lives in the auth package; protected routes mount its gate.
*/
package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/taibuivan/extcontrol/internal/platform/constants"
	"github.com/taibuivan/extcontrol/internal/platform/ctxutil"
)

// # Client Address

// ProxyTrust lists the proxies whose forwarding headers are believed. The
// zero value trusts nobody, so only the socket peer is used.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// NewProxyTrust parses CIDRs ("10.0.0.0/8") and bare addresses ("10.0.0.1").
func NewProxyTrust(entries []string) (*ProxyTrust, error) {
	trust := &ProxyTrust{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("middleware: trusted proxy %q: %w", entry, err)
			}
			trust.prefixes = append(trust.prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("middleware: trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		trust.prefixes = append(trust.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return trust, nil
}

func (trust *ProxyTrust) trusts(addr netip.Addr) bool {
	if trust == nil {
		return false
	}
	for _, prefix := range trust.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolve returns the client address for request.
//
// Forwarding headers count only when the socket peer is a trusted proxy.
// X-Forwarded-For is then walked right to left and the first hop that is not
// itself trusted wins; X-Real-IP is the fallback when no such hop exists.
// Anything unparsable falls back to the peer.
func (trust *ProxyTrust) Resolve(request *http.Request) string {
	peer, ok := parseHost(request.RemoteAddr)
	if !ok {
		return request.RemoteAddr
	}
	if !trust.trusts(peer) {
		return peer.String()
	}

	hops := strings.Split(strings.Join(request.Header.Values(constants.HeaderXForwardedFor), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		if hop = hop.Unmap(); !trust.trusts(hop) {
			return hop.String()
		}
	}

	if realIP, err := netip.ParseAddr(strings.TrimSpace(request.Header.Get(constants.HeaderXRealIP))); err == nil {
		return realIP.Unmap().String()
	}
	return peer.String()
}

// ClientIP resolves the client address once per request and stores it for
// [RealIP].
func ClientIP(trust *ProxyTrust) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := ctxutil.WithClientIP(request.Context(), trust.Resolve(request))
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RealIP returns the address stored by [ClientIP]. Outside that middleware it
// is the socket peer; request headers are never read here.
func RealIP(request *http.Request) string {
	if ip := ctxutil.GetClientIP(request.Context()); ip != "" {
		return ip
	}
	return (*ProxyTrust)(nil).Resolve(request)
}

func parseHost(remoteAddr string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
