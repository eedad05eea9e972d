// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package document loads HTML documents and keeps track of the source
// line of every element.
package document

import (
	"bytes"
	"io"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// lineAttr is the attribute holding the source line of an element
// while the document is parsed.
const lineAttr = "data-microtron-line"

// Document is a parsed HTML document.
type Document struct {
	// Root is the document node.
	Root *html.Node
	// Source is the file name or URL of the document, when known.
	Source string

	lines map[*html.Node]int
}

// Line returns the source line of an element, or 0 when it's unknown.
// Elements created by the HTML parser (implicit html, head, body...)
// have no source line.
func (d *Document) Line(n *html.Node) int {
	return d.lines[n]
}

// Parse reads and parses an HTML document. The content type, when not
// empty, is used to find the document encoding. The result is always
// UTF-8.
func Parse(r io.Reader, contentType string) (*Document, error) {
	r, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, err
	}

	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(annotate(src)))
	if err != nil {
		return nil, err
	}

	d := &Document{
		Root:  root,
		lines: map[*html.Node]int{},
	}
	d.collectLines(root)

	return d, nil
}

// annotate adds the source line attribute to every start tag.
func annotate(src []byte) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(src) + len(src)/4)

	z := html.NewTokenizer(bytes.NewReader(src))
	line := 1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// The tokenizer stops on io.EOF or on a read error
			// that can't happen with a bytes.Reader.
			break
		}

		raw := z.Raw()
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			tok.Attr = append(tok.Attr, html.Attribute{Key: lineAttr, Val: strconv.Itoa(line)})
			buf.WriteString(tok.String())
		default:
			buf.Write(raw)
		}
		line += bytes.Count(raw, []byte{'\n'})
	}

	return buf.Bytes()
}

func (d *Document) collectLines(n *html.Node) {
	if n.Type == html.ElementNode {
		attrs := n.Attr[:0]
		for _, a := range n.Attr {
			if a.Namespace == "" && a.Key == lineAttr {
				if line, err := strconv.Atoi(a.Val); err == nil {
					d.lines[n] = line
				}
				continue
			}
			attrs = append(attrs, a)
		}
		n.Attr = attrs
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.collectLines(c)
	}
}
