// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package request_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"codeberg.org/microtron/microtron/pkg/http/request"
)

func networkList(networks ...string) []*net.IPNet {
	res := []*net.IPNet{}
	for _, s := range networks {
		_, cidr, err := net.ParseCIDR(s)
		if err != nil {
			panic(err)
		}
		res = append(res, cidr)
	}

	return res
}

func TestXForwarded(t *testing.T) {
	tests := []struct {
		RemoteAddr       string
		XForwardedFor    string
		ExpectedRemoteIP string
		ExpectedRealIP   string
	}{
		{"127.0.0.1:1234", "203.0.113.1, 192.168.2.1, ::1", "127.0.0.1", "203.0.113.1"},
		{"127.0.0.1:1234", "198.51.100.7, 203.0.113.1", "127.0.0.1", "203.0.113.1"},
		{"127.0.0.1:1234", "", "127.0.0.1", "127.0.0.1"},
		{"127.0.0.1:1234", "garbage, 10.0.0.1", "127.0.0.1", "127.0.0.1"},
		{"[::1]:1234", "2001:db8:fa::2", "::1", "2001:db8:fa::2"},
		{"[fd00::ff01]:1234", "2001:db8:fa::2", "fd00::ff01", "2001:db8:fa::2"},
		{"[2001:db8:ff::1]:1234", "203.0.113.1", "2001:db8:ff::1", "2001:db8:ff::1"},
		{"128.66.1.1:1234", "203.0.113.1", "128.66.1.1", "128.66.1.1"},
	}

	for i, test := range tests {
		t.Run(strconv.Itoa(i+1), func(t *testing.T) {
			r := httptest.NewRequest("GET", "/abc?test=1", nil)
			r.RemoteAddr = test.RemoteAddr
			if test.XForwardedFor != "" {
				r.Header.Set("X-Forwarded-For", test.XForwardedFor)
			}

			var ctx context.Context
			w := httptest.NewRecorder()
			h := request.InitRequest(networkList(
				"127.0.0.0/8",
				"10.0.0.0/8",
				"172.16.0.0/12",
				"192.168.0.0/16",
				"fd00::/8",
				"::1/128",
			)...)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				ctx = r.Context()
			}))

			h.ServeHTTP(w, r)

			assert := require.New(t)
			assert.Equal(test.ExpectedRemoteIP, request.GetRemoteIP(ctx).String())
			assert.Equal(test.ExpectedRealIP, request.GetRealIP(ctx).String())
		})
	}
}

func TestRequestID(t *testing.T) {
	assert := require.New(t)

	ids := []string{}
	h := request.InitRequest()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ids = append(ids, request.GetReqID(r.Context()))
		assert.Equal(request.GetReqID(r.Context()), request.RequestID(r))
	}))

	for range 3 {
		r := httptest.NewRequest("GET", "/", nil)
		h.ServeHTTP(httptest.NewRecorder(), r)
	}

	assert.Len(ids, 3)
	for _, id := range ids {
		assert.Len(id, 22)
		assert.Equal(ids[0][:14], id[:14])
	}
	assert.NotEqual(ids[0], ids[1])
	assert.Empty(request.RequestID(httptest.NewRequest("GET", "/", nil)))
}
