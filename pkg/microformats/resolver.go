// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package microformats

import (
	"log/slog"
	"strings"

	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"codeberg.org/microtron/microtron/pkg/microformats/schema"
)

// linkSchemes are the link schemes whose payload is exposed as a field
// of url and email values.
var linkSchemes = []string{"mailto", "tel", "fax", "modem"}

// resolve returns the record of a compound format rooted at node.
func (p *Parser) resolve(node *html.Node, f *schema.Format) (*Record, error) {
	key := activeKey{node, f.Name}
	if p.depth >= p.maxDepth || p.active[key] {
		return nil, newError(ErrRecursionLimit, p.line(node), "%s", f.Name)
	}
	p.depth++
	p.active[key] = true
	defer func() {
		p.depth--
		delete(p.active, key)
	}()

	r := NewRecord(f.Name, p.line(node))
	for _, prop := range f.Properties {
		if err := p.resolveProperty(r, node, f, prop); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// resolveProperty sets the value of a property on a record.
func (p *Parser) resolveProperty(r *Record, node *html.Node, f *schema.Format, prop *schema.Property) error {
	candidates, err := p.candidates(node, f.Name, prop)
	if err != nil {
		return err
	}

	if p.strict && prop.Mandatory && len(candidates) == 0 {
		return p.report(newError(ErrMissingMandatoryProperty, p.line(node), "%s property %q", f.Name, prop.Name))
	}

	list := List{}
	text := new(strings.Builder)

	for _, c := range candidates {
		v, err := p.resolveValue(c, prop)
		if err != nil {
			if p.strict {
				if err = p.report(err); err != nil {
					return err
				}
				continue
			}
			p.logger.Debug("property fallback to text",
				slog.String("property", prop.Name),
				slog.Int("line", p.line(c)),
				slog.Any("err", err),
			)
			s, textErr := p.valueText(c)
			if textErr != nil {
				p.logger.Debug("property text fallback failed",
					slog.String("property", prop.Name),
					slog.Int("line", p.line(c)),
					slog.Any("err", textErr),
				)
				s = textContent(c)
			}
			v = Scalar(s)
		}

		if p.strict && !prop.Allows(v.Text()) {
			err := newError(ErrInvalidPropertyValue, p.line(c), "%s property %q: %q", f.Name, prop.Name, v.Text())
			if err := p.report(err); err != nil {
				return err
			}
			continue
		}

		switch prop.Cardinality {
		case schema.Many:
			list = append(list, v)
		case schema.ManyAsOne:
			if s := v.Text(); s != "" {
				if text.Len() > 0 {
					text.WriteString(prop.Separator)
				}
				text.WriteString(s)
			}
		default:
			r.Set(prop.Name, v)
			return nil
		}
	}

	switch {
	case prop.Cardinality == schema.Many && len(list) > 0:
		r.Set(prop.Name, list)
	case prop.Cardinality == schema.ManyAsOne && text.Len() > 0:
		r.Set(prop.Name, Concat(text.String()))
	}
	return nil
}

// resolveValue returns the value of one property candidate. The couldbe
// formats and the nested sub-schema are tried first and their results
// are merged. The declared type is only used when none of them matches.
func (p *Parser) resolveValue(c *html.Node, prop *schema.Property) (Value, error) {
	var merged *Record
	merge := func(x *Record) {
		if merged == nil {
			merged = NewRecord("", 0)
		}
		merged.merge(x)
	}

	for _, name := range prop.CouldBe {
		f, ok := p.catalog.Get(name)
		if !ok {
			continue
		}
		if x, ok := p.attempt(name, c, func() (*Record, error) { return p.first(f, c) }); ok {
			merge(x)
		}
	}

	if nested := prop.Nested(); nested != nil {
		if x, ok := p.attempt(nested.Name, c, func() (*Record, error) { return p.resolve(c, nested) }); ok {
			merge(x)
		}
	}

	if merged != nil {
		return merged, nil
	}
	return p.primitive(c, prop)
}

// attempt runs a speculative resolution. It fails when fn returns an
// error or a record without any field. The errors collected by a failed
// attempt are dropped.
func (p *Parser) attempt(name string, c *html.Node, fn func() (*Record, error)) (*Record, bool) {
	mark := len(p.errors)
	r, err := fn()
	if err == nil && r != nil && r.Len() > 0 {
		return r, true
	}

	p.errors = p.errors[:mark]
	if err != nil {
		p.logger.Debug("format attempt failed",
			slog.String("format", name),
			slog.Int("line", p.line(c)),
			slog.Any("err", err),
		)
	}
	return nil, false
}

// first returns the first record of a format found in n.
func (p *Parser) first(f *schema.Format, n *html.Node) (*Record, error) {
	records, err := p.parseFormat(f, n)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// primitive returns the value of a candidate according to the declared
// property type.
func (p *Parser) primitive(c *html.Node, prop *schema.Property) (Value, error) {
	if prop.Type == schema.Text {
		s, err := p.valueText(c)
		return Scalar(s), err
	}

	if prop.Type == schema.FormatRef {
		f, ok := p.catalog.Get(prop.TypeRef)
		if !ok {
			return nil, newError(ErrUnknownFormat, p.line(c), "%q", prop.TypeRef)
		}
		r, err := p.first(f, c)
		if err != nil {
			return nil, err
		}
		if r == nil || r.Len() == 0 {
			return nil, newError(ErrUnsupportedFormatDelegation, p.line(c), "property %q: no %s found", prop.Name, prop.TypeRef)
		}
		return r, nil
	}

	r := NewRecord(prop.Type.String(), p.line(c))

	switch prop.Type {
	case schema.URL, schema.Email:
		s, err := p.valueText(c)
		if err != nil {
			return nil, err
		}
		r.Set("text", Scalar(s))
		if href, ok := getAttr(c, "href"); ok {
			r.Set("href", Scalar(href))
			for _, scheme := range linkSchemes {
				if strings.HasPrefix(strings.ToLower(href), scheme+":") {
					r.Set(scheme, Scalar(href[len(scheme)+1:]))
					break
				}
			}
		}
	case schema.Image:
		for _, name := range []string{"title", "alt", "src"} {
			if s, ok := getAttr(c, name); ok {
				r.Set(name, Scalar(s))
			}
		}
	case schema.Object:
		s, err := p.valueText(c)
		if err != nil {
			return nil, err
		}
		r.Set("text", Scalar(s))
		if data, ok := getAttr(c, "data"); ok {
			r.Set("data", Scalar(data))
		}
	case schema.Date, schema.DateTime:
		s, dt, err := p.dateTime(c)
		if err != nil {
			return nil, err
		}
		r.Set("text", Scalar(s))
		if prop.Type == schema.Date {
			r.Set("date", Timestamp{dt.Date()})
		} else {
			r.Set("datetime", Timestamp{dt})
		}
	}

	return r, nil
}

func getAttr(n *html.Node, name string) (string, bool) {
	if !dom.HasAttribute(n, name) {
		return "", false
	}
	return dom.GetAttribute(n, name), true
}

func attr(n *html.Node, name string) string {
	return dom.GetAttribute(n, name)
}
