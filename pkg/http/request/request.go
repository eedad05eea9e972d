// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package request provides a middleware that identifies requests and
// their client address, behind trusted reverse proxies.
package request

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"hash/adler32"
	"net"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync/atomic"

	"codeberg.org/microtron/microtron/pkg/ctxr"
)

type (
	ctxRemoteIPKey  struct{}
	ctxRealIPKey    struct{}
	ctxRequestIDKey struct{}
)

var (
	// GetRemoteIP returns the request's [http.Request.RemoteAddr] as
	// a [net.IP] without its port.
	GetRemoteIP  = ctxr.Getter[net.IP](ctxRemoteIPKey{})
	withRemoteIP = ctxr.Setter[net.IP](ctxRemoteIPKey{})

	// GetRealIP returns the request's client IP address, taken from
	// "X-Forwarded-For" when the request comes from a trusted proxy.
	GetRealIP  = ctxr.Getter[net.IP](ctxRealIPKey{})
	withRealIP = ctxr.Setter[net.IP](ctxRealIPKey{})

	// GetReqID returns the request's ID.
	GetReqID   = ctxr.Getter[string](ctxRequestIDKey{})
	checkReqID = ctxr.Checker[string](ctxRequestIDKey{})
	withReqID  = ctxr.Setter[string](ctxRequestIDKey{})
)

var (
	reqid       uint32
	reqIDPrefix [13]byte
)

func init() {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "localhost"
	}

	var b [6]byte
	rand.Read(b[4:]) //nolint:errcheck
	cs := adler32.New()
	cs.Write([]byte(hostname)) //nolint:errcheck
	copy(b[0:4], cs.Sum(nil))

	reqIDPrefix[8] = '/'
	hex.Encode(reqIDPrefix[0:8], b[0:4])
	hex.Encode(reqIDPrefix[9:], b[4:])
}

// makeRequestID returns a string of the form "host-checksum/random-seq".
func makeRequestID() string {
	var id [22]byte
	copy(id[0:13], reqIDPrefix[:])
	id[13] = '-'

	hex.Encode(id[14:], binary.BigEndian.AppendUint32(nil, atomic.AddUint32(&reqid, 1)))
	return string(id[:])
}

// RequestID returns the ID of a request or an empty string.
func RequestID(r *http.Request) string {
	id, _ := checkReqID(r.Context())
	return id
}

// InitRequest adds the remote address (without port), the real client IP
// and a request ID to the request's context.
//
// The real client IP is the first address of "X-Forwarded-For", read
// from the right, that is not a trusted proxy. The header is only
// considered when the remote address is a trusted proxy.
func InitRequest(trustedProxies ...*net.IPNet) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			remoteAddr, _, _ := net.SplitHostPort(r.RemoteAddr)
			remoteIP := net.ParseIP(remoteAddr)
			ctx = withRemoteIP(ctx, remoteIP)

			if isTrustedProxy(trustedProxies, remoteIP) {
				for _, ip := range parseXForwardedFor(r.Header) {
					if isTrustedProxy(trustedProxies, ip) {
						continue
					}
					remoteIP = ip
					break
				}
			}
			ctx = withRealIP(ctx, remoteIP)
			ctx = withReqID(ctx, makeRequestID())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseXForwardedFor returns the valid addresses of "X-Forwarded-For",
// last one first.
func parseXForwardedFor(h http.Header) []net.IP {
	res := []net.IP{}
	for _, v := range h.Values("X-Forwarded-For") {
		for _, s := range strings.Split(v, ",") {
			if ip := net.ParseIP(strings.TrimSpace(s)); ip != nil {
				res = append(res, ip)
			}
		}
	}
	slices.Reverse(res)
	return res
}

func isTrustedProxy(p []*net.IPNet, ip net.IP) bool {
	return slices.ContainsFunc(p, func(cidr *net.IPNet) bool {
		return cidr.Contains(ip)
	})
}
