// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package httpclient provides the HTTP client used to fetch documents.
// Its [http.RoundTripper] adds default headers, logs every request
// and can refuse destinations in denied IP ranges.
package httpclient

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// UserAgent is the default User-Agent header.
const UserAgent = "Mozilla/5.0 (compatible; microtron/1.0; +https://codeberg.org/microtron/microtron)"

// DefaultTimeout is the default client timeout.
const DefaultTimeout = 10 * time.Second

// defaultDialer has shorter timeout and keepalive than the default one.
var defaultDialer = net.Dialer{
	Timeout:   15 * time.Second,
	KeepAlive: 30 * time.Second,
}

var defaultTransport = &http.Transport{
	DialContext:           defaultDialer.DialContext,
	Proxy:                 http.ProxyFromEnvironment,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          50,
	MaxIdleConnsPerHost:   2,
	IdleConnTimeout:       30 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// defaultHeaders are sent with every request that does not set them.
var defaultHeaders = http.Header{
	"User-Agent":      []string{UserAgent},
	"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
	"Accept-Language": []string{"en-US,en;q=0.8"},
}

// Transport wraps an [http.RoundTripper].
type Transport struct {
	http.RoundTripper
	header    http.Header
	logger    *slog.Logger
	deniedIPs []*net.IPNet
}

// RoundTrip implements [http.RoundTripper].
// It checks if the destination IP is allowed, adds default headers and
// logs (debug-10 level) every request.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	if err := t.checkDestIP(r); err != nil {
		return nil, err
	}

	// A RoundTripper should not modify the request. Since we only want to add
	// headers, we can work with a shallow copy.
	req := new(http.Request)
	*req = *r
	req.Header = req.Header.Clone()

	for k, values := range t.header {
		if _, ok := r.Header[textproto.CanonicalMIMEHeaderKey(k)]; !ok {
			req.Header[k] = values
		}
	}

	attrs := []slog.Attr{
		slog.Group("request",
			slog.String("url", req.URL.String()),
			slog.String("method", req.Method),
			slog.Any("headers", req.Header),
		),
	}

	now := time.Now()
	rsp, err := t.RoundTripper.RoundTrip(req)

	if err != nil {
		attrs = append(attrs, slog.Group("response",
			slog.Any("err", err),
		))
	} else {
		attrs = append(attrs, slog.Group("response",
			slog.Int("status", rsp.StatusCode),
			slog.Any("headers", rsp.Header),
		))
	}
	attrs = append(attrs, slog.Duration("time", time.Since(now)))
	t.Log().LogAttrs(context.Background(), slog.LevelDebug-10, "request", attrs...)

	return rsp, err
}

func (t *Transport) checkDestIP(r *http.Request) error {
	if len(t.deniedIPs) == 0 {
		// An empty list disables the IP check.
		return nil
	}

	hostname := r.URL.Hostname()
	host, err := idna.ToASCII(hostname)
	if err != nil {
		return fmt.Errorf("invalid hostname %s", hostname)
	}

	ips, err := lookupIP(host)
	if err != nil {
		return fmt.Errorf("cannot resolve %s", host)
	}

	for _, cidr := range t.deniedIPs {
		for _, ip := range ips {
			if cidr.Contains(ip) {
				return fmt.Errorf("ip %s is blocked by rule %s", ip, cidr)
			}
		}
	}

	return nil
}

var lookupIP = func(host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	return net.LookupIP(host)
}

// Log returns the transport's logger.
func (t *Transport) Log() *slog.Logger {
	return t.logger
}

// SetLogger sets the transport's logger.
func (t *Transport) SetLogger(l *slog.Logger) {
	t.logger = l
}

// SetHeader receives a function that can manipulate the
// transport's default headers.
func (t *Transport) SetHeader(fn func(h http.Header)) {
	fn(t.header)
}

// WithTimeout sets the client timeout.
func WithTimeout(d time.Duration) func(*http.Client) {
	return func(c *http.Client) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithLogger sets the transport's logger.
func WithLogger(l *slog.Logger) func(*http.Client) {
	return func(c *http.Client) {
		if t, ok := c.Transport.(*Transport); ok {
			t.SetLogger(l)
		}
	}
}

// WithDeniedIPs refuses requests to hosts resolving in the given networks.
func WithDeniedIPs(networks ...*net.IPNet) func(*http.Client) {
	return func(c *http.Client) {
		if t, ok := c.Transport.(*Transport); ok {
			t.deniedIPs = append(t.deniedIPs, networks...)
		}
	}
}

// New returns a new client with an empty cookie storage and a [Transport] instance.
func New(options ...func(*http.Client)) *http.Client {
	cookies, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	c := &http.Client{
		Transport: &Transport{
			RoundTripper: defaultTransport.Clone(),
			header:       maps.Clone(defaultHeaders),
			logger:       slog.Default(),
		},
		Timeout: DefaultTimeout,
		Jar:     cookies,
	}

	for _, fn := range options {
		fn(c)
	}
	return c
}

// ParseNetworks parses a list of CIDR notations. Empty values are skipped.
func ParseNetworks(values ...string) ([]*net.IPNet, error) {
	res := make([]*net.IPNet, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		_, n, err := net.ParseCIDR(v)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}
