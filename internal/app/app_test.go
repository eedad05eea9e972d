// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package app

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"

	"codeberg.org/microtron/microtron/configs"
	"codeberg.org/microtron/microtron/pkg/microformats"
	"codeberg.org/microtron/microtron/pkg/microformats/schema"
)

// runCommand runs the application with some arguments and returns
// its standard output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := new(bytes.Buffer)
	stdout = out
	stderr = new(bytes.Buffer)
	t.Cleanup(func() {
		stdout = os.Stdout
		stderr = os.Stderr
		configs.Reset()
	})

	err := run(context.Background(), args)
	return out.String(), err
}

// assertGolden compares a command output with the content of a file.
func assertGolden(t *testing.T, filename string, actual string) {
	t.Helper()

	expected, err := os.ReadFile(filename)
	require.NoError(t, err)

	if string(expected) != actual {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(expected)),
			B:        difflib.SplitLines(actual),
			FromFile: "Expected",
			ToFile:   "Actual",
			Context:  2,
		})
		t.Error("Expected and actual output do not match:\n" + diff)
	}
}

func TestExtractCommand(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		out, err := runCommand(t, "extract", "-schema", "test-fixtures/schema.yaml",
			"-f", "rel-tag", "test-fixtures/page.html")
		require.NoError(t, err)
		assertGolden(t, "test-fixtures/page.rel-tag.json", out)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := runCommand(t, "extract", "-schema", "test-fixtures/schema.yaml",
			"-f", "rel-tag", "-o", "yaml", "test-fixtures/page.html")
		require.NoError(t, err)
		assertGolden(t, "test-fixtures/page.rel-tag.yaml", out)
	})

	t.Run("query", func(t *testing.T) {
		assert := require.New(t)
		out, err := runCommand(t, "extract", "-schema", "test-fixtures/schema.yaml",
			"-q", ".items[].format", "test-fixtures/page.html")
		assert.NoError(err)
		assert.Equal("\"card\"\n\"rel-tag\"\n", out)
	})

	t.Run("several sources", func(t *testing.T) {
		assert := require.New(t)
		out, err := runCommand(t, "extract", "-schema", "test-fixtures/schema.yaml",
			"-f", "card", "-jobs", "2", "-q", ".[].source",
			"test-fixtures/page.html", "test-fixtures/broken.html")
		assert.NoError(err)
		assert.Equal("\"test-fixtures/page.html\"\n\"test-fixtures/broken.html\"\n", out)
	})

	t.Run("strict", func(t *testing.T) {
		assert := require.New(t)
		_, err := runCommand(t, "extract", "-schema", "test-fixtures/schema.yaml",
			"-strict", "test-fixtures/broken.html")
		assert.ErrorIs(err, microformats.ErrMissingMandatoryProperty)
		assert.EqualError(err,
			`test-fixtures/broken.html: line 4: missing mandatory property: card property "fn"`)
	})

	t.Run("collect errors", func(t *testing.T) {
		assert := require.New(t)
		out, err := runCommand(t, "extract", "-schema", "test-fixtures/schema.yaml",
			"-strict", "-collect-errors", "-q", ".errors", "test-fixtures/broken.html")
		assert.ErrorIs(err, errExtraction)
		assert.JSONEq(`[{
			"code": "missing mandatory property",
			"line": 4,
			"message": "card property \"fn\""
		}]`, out)
	})

	tests := []struct {
		args []string
		err  error
	}{
		{[]string{"extract"}, nil},
		{[]string{"extract", "-o", "xml", "test-fixtures/page.html"}, nil},
		{[]string{"extract", "-q", ".[", "test-fixtures/page.html"}, nil},
		{[]string{"extract", "-f", "nope", "test-fixtures/page.html"}, microformats.ErrUnknownFormat},
		{[]string{"extract", "-schema", "test-fixtures/page.html", "test-fixtures/page.html"}, schema.ErrUnknownEncoding},
		{[]string{"extract", "test-fixtures/missing.html"}, os.ErrNotExist},
	}

	for _, test := range tests {
		t.Run(test.args[len(test.args)-1], func(t *testing.T) {
			_, err := runCommand(t, test.args...)
			require.Error(t, err)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
			}
		})
	}
}

func TestFormatsCommand(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, err := runCommand(t, "formats", "-schema", "test-fixtures/schema.yaml")
		require.NoError(t, err)
		assertGolden(t, "test-fixtures/formats.txt", out)
	})

	t.Run("json", func(t *testing.T) {
		assert := require.New(t)
		out, err := runCommand(t, "formats", "-schema", "test-fixtures/schema.yaml", "-o", "json")
		assert.NoError(err)

		c, err := schema.Parse(bytes.NewReader([]byte(out)), schema.EncodingJSON)
		assert.NoError(err)
		assert.Equal([]string{"card", "rel-tag"}, c.Names())
	})

	t.Run("default", func(t *testing.T) {
		assert := require.New(t)
		out, err := runCommand(t, "formats", "-o", "yaml")
		assert.NoError(err)

		c, err := schema.Parse(bytes.NewReader([]byte(out)), schema.EncodingYAML)
		assert.NoError(err)
		assert.Equal(schema.Default().Names(), c.Names())
	})
}

func TestStringsFlag(t *testing.T) {
	assert := require.New(t)

	var f stringsFlag
	assert.NoError(f.Set("vcard, vevent"))
	assert.NoError(f.Set(""))
	assert.NoError(f.Set("rel-tag"))
	assert.Equal(stringsFlag{"vcard", "vevent", "rel-tag"}, f)
	assert.Equal("vcard,vevent,rel-tag", f.String())
}
