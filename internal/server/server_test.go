// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/kinbiko/jsonassert"
	"github.com/stretchr/testify/require"

	"codeberg.org/microtron/microtron/configs"
	"codeberg.org/microtron/microtron/internal/extractor"
	"codeberg.org/microtron/microtron/internal/server"
	"codeberg.org/microtron/microtron/pkg/microformats/schema"
)

const eventPage = `<!DOCTYPE html>
<html>
<body>
<div class="vevent">
  <span class="summary">Go meetup</span>
  <abbr class="dtstart" title="2009-08-01T19:00">Aug 1st</abbr>
</div>
<a rel="tag" href="/tags/go">go</a>
</body>
</html>`

func newServer(t *testing.T) *server.Server {
	t.Helper()
	configs.Reset()
	require.NoError(t, configs.InitConfiguration())
	t.Cleanup(configs.Reset)

	mt := httpmock.NewMockTransport()
	mt.RegisterResponder("GET", "https://example.net/event", func(*http.Request) (*http.Response, error) {
		rsp := httpmock.NewStringResponse(http.StatusOK, eventPage)
		rsp.Header.Set("Content-Type", "text/html; charset=utf-8")
		return rsp, nil
	})
	mt.RegisterResponder("GET", "https://example.net/image.png",
		httpmock.NewBytesResponder(http.StatusOK, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")))
	mt.RegisterResponder("GET", "https://example.net/404",
		httpmock.NewStringResponder(http.StatusNotFound, "not found"))

	s := server.New(extractor.New(schema.Default(), &http.Client{Transport: mt}))
	s.Init()
	return s
}

type testRequest struct {
	method  string
	target  string
	body    string
	headers map[string]string
}

func (tr testRequest) do(s *server.Server) *httptest.ResponseRecorder {
	method := tr.method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if tr.body != "" {
		body = strings.NewReader(tr.body)
	}

	r := httptest.NewRequest(method, tr.target, body)
	r.RemoteAddr = "127.0.0.1:1234"
	for k, v := range tr.headers {
		r.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.ServeHTTP(w, r)
	return w
}

func TestInfo(t *testing.T) {
	assert := require.New(t)
	s := newServer(t)

	w := testRequest{target: "/api/info"}.do(s)
	assert.Equal(http.StatusOK, w.Code)
	assert.Equal("application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var info map[string]map[string]string
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(configs.Version(), info["version"]["canonical"])
}

func TestSecurityHeaders(t *testing.T) {
	assert := require.New(t)
	s := newServer(t)

	w := testRequest{target: "/api/info"}.do(s)
	assert.Equal("default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'",
		w.Header().Get("Content-Security-Policy"))
	assert.Equal("no-referrer", w.Header().Get("Referrer-Policy"))
	assert.Equal("nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal("DENY", w.Header().Get("X-Frame-Options"))
}

func TestFormats(t *testing.T) {
	assert := require.New(t)
	s := newServer(t)

	w := testRequest{target: "/api/formats"}.do(s)
	assert.Equal(http.StatusOK, w.Code)

	c, err := schema.Parse(bytes.NewReader(w.Body.Bytes()), schema.EncodingJSON)
	assert.NoError(err)
	assert.Equal(schema.Default().Formats(), c.Formats())

	w = testRequest{target: "/api/formats?output=yaml"}.do(s)
	assert.Equal(http.StatusOK, w.Code)
	assert.Equal("application/yaml; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(w.Body.String(), "- name: vcard\n")
}

func TestExtractURL(t *testing.T) {
	s := newServer(t)

	t.Run("ok", func(t *testing.T) {
		w := testRequest{target: "/api/extract?url=https://example.net/event&format=vevent"}.do(s)
		require.Equal(t, http.StatusOK, w.Code)

		jsonassert.New(t).Assertf(w.Body.String(), `{
			"source": "https://example.net/event",
			"items": [{"format": "vevent", "records": [{
				"kind": "vevent",
				"summary": "Go meetup",
				"dtstart": {"kind": "datetime", "text": "2009-08-01T19:00", "datetime": "2009-08-01T19:00:00"}
			}]}]
		}`)
	})

	t.Run("yaml", func(t *testing.T) {
		assert := require.New(t)
		w := testRequest{
			target:  "/api/extract?url=https://example.net/event&format=rel-tag",
			headers: map[string]string{"Accept": "application/yaml"},
		}.do(s)
		assert.Equal(http.StatusOK, w.Code)
		assert.Equal("application/yaml; charset=utf-8", w.Header().Get("Content-Type"))
		assert.True(strings.HasPrefix(w.Body.String(), "source: https://example.net/event\nitems:\n"))
	})

	t.Run("query", func(t *testing.T) {
		assert := require.New(t)
		w := testRequest{target: "/api/extract?url=https://example.net/event&q=" +
			"%5B.items%5B%5D.records%5B%5D.kind%5D"}.do(s)
		assert.Equal(http.StatusOK, w.Code)
		assert.JSONEq(`[["vevent", "rel-tag"]]`, w.Body.String())
	})

	tests := []struct {
		target string
		status int
		msg    string
	}{
		{"/api/extract", 400, "the url parameter must be an http or https URL"},
		{"/api/extract?url=/etc/passwd", 400, "the url parameter must be an http or https URL"},
		{"/api/extract?url=https://example.net/event&format=nope", 400, `unknown format: "nope"`},
		{"/api/extract?url=https://example.net/event&strict=maybe", 400, `invalid strict value "maybe"`},
		{"/api/extract?url=https://example.net/event&max_depth=0", 400, `invalid max_depth value "0"`},
		{"/api/extract?url=https://example.net/event&output=xml", 400, `unknown output format: "xml"`},
		{"/api/extract?url=https://example.net/event&q=.[", 400, ""},
		{"/api/extract?url=https://example.net/image.png", 415, ""},
		{"/api/extract?url=https://example.net/404", 502, ""},
	}

	for _, test := range tests {
		t.Run(test.target, func(t *testing.T) {
			assert := require.New(t)
			w := testRequest{target: test.target}.do(s)
			assert.Equal(test.status, w.Code)

			var msg server.Message
			assert.NoError(json.Unmarshal(w.Body.Bytes(), &msg))
			assert.Equal(test.status, msg.Status)
			if test.msg != "" {
				assert.Equal(test.msg, msg.Message)
			}
		})
	}
}

func TestExtractBody(t *testing.T) {
	s := newServer(t)

	t.Run("ok", func(t *testing.T) {
		w := testRequest{
			method:  http.MethodPost,
			target:  "/api/extract?format=rel-tag&source=page.html",
			body:    eventPage,
			headers: map[string]string{"Content-Type": "text/html"},
		}.do(s)
		require.Equal(t, http.StatusOK, w.Code)

		jsonassert.New(t).Assertf(w.Body.String(), `{
			"source": "page.html",
			"items": [{"format": "rel-tag", "records": [
				{"kind": "rel-tag", "value": "tag", "href": "/tags/go", "text": "go"}
			]}]
		}`)
	})

	t.Run("strict", func(t *testing.T) {
		w := testRequest{
			method: http.MethodPost,
			target: "/api/extract?strict",
			body:   `<div class="vcard"><span class="org">Acme</span></div>`,
		}.do(s)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		jsonassert.New(t).Assertf(w.Body.String(), `{
			"status": 422,
			"message": "extraction failed",
			"errors": [{
				"code": "missing mandatory property",
				"line": 1,
				"message": "vcard property \"fn\""
			}]
		}`)
	})

	t.Run("collect errors", func(t *testing.T) {
		w := testRequest{
			method: http.MethodPost,
			target: "/api/extract?strict&collect_errors=1",
			body:   `<div class="vcard"><span class="org">Acme</span></div>`,
		}.do(s)
		require.Equal(t, http.StatusOK, w.Code)

		var res extractor.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Len(t, res.Items, 1)
		require.Equal(t, "vcard", res.Items[0].Format)
		require.Equal(t, []extractor.ErrorInfo{{
			Code:    "missing mandatory property",
			Line:    1,
			Message: `vcard property "fn"`,
		}}, res.Errors)
	})

	t.Run("not html", func(t *testing.T) {
		w := testRequest{
			method: http.MethodPost,
			target: "/api/extract",
			body:   "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR",
		}.do(s)
		require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		configs.Config.Server.MaxBodySize = 64
		t.Cleanup(func() { configs.Config.Server.MaxBodySize = 32 << 20 })

		w := testRequest{
			method: http.MethodPost,
			target: "/api/extract",
			body:   eventPage,
		}.do(s)
		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("query limits", func(t *testing.T) {
		t.Cleanup(func() { configs.Config.Fetch.Timeout = configs.Duration(10 * time.Second) })

		tests := []struct {
			timeout time.Duration
			q       string
			msg     string
		}{
			{20 * time.Millisecond, "%5Brange(1e9)%5D%7Clength", "query timed out: context deadline exceeded"},
			{time.Minute, "range(200000)", "too many query results (100000)"},
		}
		for _, test := range tests {
			assert := require.New(t)
			configs.Config.Fetch.Timeout = configs.Duration(test.timeout)
			w := testRequest{
				method: http.MethodPost,
				target: "/api/extract?q=" + test.q,
				body:   eventPage,
			}.do(s)
			assert.Equal(http.StatusUnprocessableEntity, w.Code)

			var msg server.Message
			assert.NoError(json.Unmarshal(w.Body.Bytes(), &msg))
			assert.Equal(test.msg, msg.Message)
		}
	})

	t.Run("cross origin", func(t *testing.T) {
		for _, headers := range []map[string]string{
			{"Sec-Fetch-Site": "cross-site"},
			{"Origin": "https://evil.example.org"},
		} {
			w := testRequest{
				method:  http.MethodPost,
				target:  "/api/extract",
				body:    eventPage,
				headers: headers,
			}.do(s)
			require.Equal(t, http.StatusForbidden, w.Code)
		}

		w := testRequest{
			method:  http.MethodPost,
			target:  "/api/extract",
			body:    eventPage,
			headers: map[string]string{"Sec-Fetch-Site": "same-origin"},
		}.do(s)
		require.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequestLog(t *testing.T) {
	s := newServer(t)

	buf := new(bytes.Buffer)
	logger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(logger) })

	t.Run("body", func(t *testing.T) {
		assert := require.New(t)
		buf.Reset()
		w := testRequest{
			method: http.MethodPost,
			target: "/api/extract?format=rel-tag&source=page.html&strict",
			body:   eventPage,
		}.do(s)
		assert.Equal(http.StatusOK, w.Code)

		line := buf.String()
		assert.Contains(line, `msg="http 200 OK"`)
		assert.Contains(line, "request.method=POST")
		assert.Contains(line, "extract.source=page.html extract.formats=rel-tag extract.strict=true")
		assert.Contains(line, "result.items=1 result.records=1 result.errors=0")
		assert.Contains(line, "response.status=200")
	})

	t.Run("url error", func(t *testing.T) {
		assert := require.New(t)
		buf.Reset()
		w := testRequest{target: "/api/extract?url=https://example.net/404&q=.items"}.do(s)
		assert.Equal(http.StatusBadGateway, w.Code)

		line := buf.String()
		assert.Contains(line, "extract.source=https://example.net/404 extract.query=.items")
		assert.NotContains(line, "result.")
		assert.Contains(line, "response.status=502")
	})

	t.Run("info", func(t *testing.T) {
		assert := require.New(t)
		buf.Reset()
		testRequest{target: "/api/info"}.do(s)
		assert.Contains(buf.String(), "response.status=200")
		assert.NotContains(buf.String(), "extract.")
	})
}

func TestCannonicalPaths(t *testing.T) {
	assert := require.New(t)
	s := newServer(t)

	w := testRequest{target: "/api//info?x=1"}.do(s)
	assert.Equal(http.StatusPermanentRedirect, w.Code)
	assert.Equal("//example.com/api/info?x=1", w.Header().Get("Location"))
}

func TestMetrics(t *testing.T) {
	assert := require.New(t)
	s := newServer(t)

	testRequest{target: "/api/extract?url=https://example.net/event"}.do(s)

	w := testRequest{target: "/metrics"}.do(s)
	assert.Equal(http.StatusOK, w.Code)
	assert.Contains(w.Body.String(), `microtron_extractions_total{status="ok"}`)
	assert.Contains(w.Body.String(), `microtron_records_total{format="vevent"}`)
	assert.Contains(w.Body.String(), `microtron_http_requests_total{code="200",method="get"}`)
}
