// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package extractor_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/kinbiko/jsonassert"
	"github.com/stretchr/testify/require"

	"codeberg.org/microtron/microtron/internal/extractor"
	"codeberg.org/microtron/microtron/pkg/microformats"
	"codeberg.org/microtron/microtron/pkg/microformats/schema"
)

func newExtractor(t *testing.T) *extractor.Extractor {
	t.Helper()

	mt := httpmock.NewMockTransport()
	mt.RegisterResponder("GET", "https://example.net/event", func(*http.Request) (*http.Response, error) {
		data, err := os.ReadFile("test-fixtures/event.html")
		if err != nil {
			return nil, err
		}
		rsp := httpmock.NewBytesResponse(http.StatusOK, data)
		rsp.Header.Set("Content-Type", "text/html; charset=utf-8")
		return rsp, nil
	})
	mt.RegisterResponder("GET", "https://example.net/404",
		httpmock.NewStringResponder(http.StatusNotFound, "not found"))

	return extractor.New(schema.Default(), &http.Client{Transport: mt})
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestLoad(t *testing.T) {
	e := newExtractor(t)

	t.Run("all formats", func(t *testing.T) {
		res, err := e.Load(context.Background(), "test-fixtures/event.html", extractor.Options{Strict: true})
		require.NoError(t, err)

		jsonassert.New(t).Assertf(toJSON(t, res), `{
			"source": "test-fixtures/event.html",
			"items": [
				{"format": "vcard", "records": [{"kind": "vcard", "fn": "Le Bar"}]},
				{"format": "vevent", "records": [{
					"kind": "vevent",
					"dtstart": {"kind": "datetime", "text": "2009-08-017pm", "datetime": "2009-08-01T19:00:00"},
					"summary": "Go meetup",
					"location": {"kind": "vcard", "fn": "Le Bar"}
				}]},
				{"format": "rel-tag", "records": [{"kind": "rel-tag", "value": "tag", "href": "/tags/go", "text": "go"}]}
			]
		}`)
	})

	t.Run("some formats", func(t *testing.T) {
		assert := require.New(t)
		res, err := e.Load(context.Background(), "https://example.net/event", extractor.Options{
			Formats: []string{"rel-tag", "hreview", "rel-tag"},
		})
		assert.NoError(err)
		assert.Equal("https://example.net/event", res.Source)
		assert.Len(res.Items, 1)
		assert.Equal("rel-tag", res.Items[0].Format)
	})

	t.Run("duplicate formats", func(t *testing.T) {
		assert := require.New(t)
		res, err := e.Load(context.Background(), "test-fixtures/event.html", extractor.Options{
			Formats: []string{"rel-tag", "vevent", "rel-tag", "vevent"},
		})
		assert.NoError(err)
		assert.Len(res.Items, 2)
		assert.Equal("rel-tag", res.Items[0].Format)
		assert.Equal("vevent", res.Items[1].Format)
	})

	t.Run("http error", func(t *testing.T) {
		_, err := e.Load(context.Background(), "https://example.net/404", extractor.Options{})
		require.ErrorContains(t, err, "invalid status code (404)")
	})
}

func TestErrors(t *testing.T) {
	e := newExtractor(t)

	t.Run("strict", func(t *testing.T) {
		assert := require.New(t)
		_, err := e.Load(context.Background(), "test-fixtures/broken.html", extractor.Options{Strict: true})
		assert.ErrorIs(err, microformats.ErrMissingMandatoryProperty)
		assert.Equal(extractor.ErrorInfo{
			Code:    "missing mandatory property",
			Line:    4,
			Message: `vcard property "fn"`,
		}, extractor.Describe(err))
	})

	t.Run("collect", func(t *testing.T) {
		assert := require.New(t)
		res, err := e.Load(context.Background(), "test-fixtures/broken.html", extractor.Options{
			Strict:        true,
			CollectErrors: true,
		})
		assert.NoError(err)
		assert.Equal([]extractor.ErrorInfo{
			{Code: "missing mandatory property", Line: 4, Message: `vcard property "fn"`},
			{Code: "malformed datetime fragment", Line: 9, Message: `"late"`},
		}, res.Errors)
		assert.Len(res.Items, 2)
	})

	t.Run("lenient", func(t *testing.T) {
		assert := require.New(t)
		res, err := e.Load(context.Background(), "test-fixtures/broken.html", extractor.Options{})
		assert.NoError(err)
		assert.Empty(res.Errors)
	})

	t.Run("describe", func(t *testing.T) {
		assert := require.New(t)
		assert.Equal(extractor.ErrorInfo{Message: "boom"}, extractor.Describe(errors.New("boom")))
	})
}

func TestCheckFormats(t *testing.T) {
	assert := require.New(t)
	e := newExtractor(t)

	assert.NoError(e.CheckFormats("vcard", "rel-tag"))
	err := e.CheckFormats("vcard", "hcard", "h-entry")
	assert.ErrorIs(err, microformats.ErrUnknownFormat)
	assert.EqualError(err, "unknown format: \"hcard\"\nunknown format: \"h-entry\"")
}

func TestBatch(t *testing.T) {
	e := newExtractor(t)

	t.Run("ok", func(t *testing.T) {
		assert := require.New(t)
		sources := []string{
			"https://example.net/event",
			"test-fixtures/broken.html",
			"test-fixtures/event.html",
		}
		res, err := e.Batch(context.Background(), sources, 2, extractor.Options{})
		assert.NoError(err)
		assert.Len(res, 3)
		for i, r := range res {
			assert.Equal(sources[i], r.Source)
		}
	})

	t.Run("error", func(t *testing.T) {
		_, err := e.Batch(context.Background(), []string{
			"test-fixtures/event.html",
			"https://example.net/404",
		}, 0, extractor.Options{})
		require.ErrorContains(t, err, "https://example.net/404: ")
	})
}
