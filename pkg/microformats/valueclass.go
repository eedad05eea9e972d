// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package microformats

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-shiori/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"codeberg.org/microtron/microtron/pkg/microformats/datetime"
	"codeberg.org/microtron/microtron/pkg/microformats/schema"
)

const (
	valueClass      = "value"
	valueTitleClass = "value-title"
)

// valueText returns the value of a node, following the value-class-pattern.
// The value fragments are joined without separator.
func (p *Parser) valueText(n *html.Node) (string, error) {
	nodes, err := p.valueNodes(n)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return p.fragment(n)
	}

	b := new(strings.Builder)
	for _, x := range nodes {
		s, err := p.fragment(x)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// valueFragments returns the value-class-pattern fragments of a node.
// It returns nil when the node has no explicit value.
func (p *Parser) valueFragments(n *html.Node) ([]datetime.Fragment, error) {
	nodes, err := p.valueNodes(n)
	if err != nil {
		return nil, err
	}

	res := make([]datetime.Fragment, 0, len(nodes))
	for _, x := range nodes {
		s, err := p.fragment(x)
		if err != nil {
			return nil, err
		}
		res = append(res, datetime.Fragment{Text: s, Line: p.line(x)})
	}
	return res, nil
}

// fragment returns the value of a single element: the title of
// abbreviations and value-title elements, the alt text of images and
// areas, the normalized text of anything else.
func (p *Parser) fragment(n *html.Node) (string, error) {
	switch {
	case n.DataAtom == atom.Abbr || hasToken(n, schema.DefaultAttribute, valueTitleClass):
		return p.requiredAttribute(n, "title")
	case n.DataAtom == atom.Img || n.DataAtom == atom.Area:
		return p.requiredAttribute(n, "alt")
	}
	return textContent(n), nil
}

func (p *Parser) requiredAttribute(n *html.Node, name string) (string, error) {
	if dom.HasAttribute(n, name) {
		return dom.GetAttribute(n, name), nil
	}
	if !p.strict {
		return "", nil
	}
	err := newError(ErrMissingRequiredAttribute, p.line(n), "%q on %s element", name, n.Data)
	return "", p.report(err)
}

// dateTime returns the value text of a node and its composed date
// and time.
func (p *Parser) dateTime(n *html.Node) (string, datetime.DateTime, error) {
	line := p.line(n)

	fragments, err := p.valueFragments(n)
	if err != nil {
		return "", datetime.DateTime{}, err
	}

	if len(fragments) == 0 {
		txt, err := p.fragment(n)
		if err != nil {
			return "", datetime.DateTime{}, err
		}
		if dt, ok := datetime.ParseLiteral(txt); ok {
			return txt, dt, nil
		}
		if dt, ok := p.looseDateTime(txt); ok {
			return txt, dt, nil
		}
		return "", datetime.DateTime{}, &ParseError{
			Code:    ErrMissingDateComponent,
			Message: fmt.Sprintf("%q", strings.TrimSpace(txt)),
			Line:    line,
			Err:     datetime.ErrMissingDate,
		}
	}

	b := new(strings.Builder)
	for _, f := range fragments {
		b.WriteString(f.Text)
	}

	c := datetime.Composer{
		Strict: p.strict,
		Logger: p.logger,
		Report: func(fe *datetime.FragmentError) error {
			return p.report(wrapDateTimeError(fe, line))
		},
	}

	dt, err := c.Compose(fragments)
	if err != nil {
		return "", datetime.DateTime{}, wrapDateTimeError(err, line)
	}
	return b.String(), dt, nil
}

// looseDateTime parses any date format known to dateparse. It only
// runs in lenient mode when loose dates are enabled.
func (p *Parser) looseDateTime(txt string) (datetime.DateTime, bool) {
	if p.strict || !p.looseDates {
		return datetime.DateTime{}, false
	}

	txt = strings.TrimSpace(txt)
	if txt == "" {
		return datetime.DateTime{}, false
	}

	t, err := dateparse.ParseIn(txt, time.UTC)
	if err != nil {
		return datetime.DateTime{}, false
	}

	p.logger.Debug("loose date", "text", txt, "date", t)
	return datetime.DateTime{
		Time:  t,
		Valid: true,
		Zoned: t.Location() != time.UTC,
	}, true
}

func textContent(n *html.Node) string {
	return normalizeSpace(dom.TextContent(n))
}
