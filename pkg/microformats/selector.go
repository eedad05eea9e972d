// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package microformats

import (
	"fmt"
	"slices"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"github.com/go-shiori/dom"
	"golang.org/x/net/html"

	"codeberg.org/microtron/microtron/pkg/microformats/schema"
)

// tokenExpr returns an XPath expression selecting the elements of
// an axis whose attribute contains one of the given tokens.
func tokenExpr(axis, attribute string, tokens ...string) string {
	tests := make([]string, len(tokens))
	for i, token := range tokens {
		tests[i] = fmt.Sprintf(`contains(concat(" ", normalize-space(@%s), " "), " %s ")`, attribute, token)
	}
	return fmt.Sprintf("%s::*[%s]", axis, strings.Join(tests, " or "))
}

// compile returns a compiled XPath expression. Expressions are kept for
// the parser lifetime.
func (p *Parser) compile(expr string) (*xpath.Expr, error) {
	if e, ok := p.exprs[expr]; ok {
		return e, nil
	}
	e, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expr, err)
	}
	p.exprs[expr] = e
	return e, nil
}

// selectNodes returns, in document order, root and its descendants that
// carry token in the given attribute.
func (p *Parser) selectNodes(root *html.Node, attribute, token string) ([]*html.Node, error) {
	if root == nil {
		return nil, nil
	}
	e, err := p.compile(tokenExpr("descendant-or-self", attribute, token))
	if err != nil {
		return nil, err
	}
	return htmlquery.QuerySelectorAll(root, e), nil
}

// valueNodes returns the value-class-pattern descendants of n.
func (p *Parser) valueNodes(n *html.Node) ([]*html.Node, error) {
	e, err := p.compile(tokenExpr("descendant", schema.DefaultAttribute, valueClass, valueTitleClass))
	if err != nil {
		return nil, err
	}
	return htmlquery.QuerySelectorAll(n, e), nil
}

// candidates returns the nodes holding a property of the record rooted
// at node. A candidate belongs to the record when it is node itself, or
// when its nearest ancestor carrying the format token is node. Other
// candidates belong to a nested record of the same format.
func (p *Parser) candidates(node *html.Node, format string, prop *schema.Property) ([]*html.Node, error) {
	nodes, err := p.selectNodes(node, prop.Attribute, prop.Name)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(nodes, func(n *html.Node) bool {
		return !owned(n, node, format)
	}), nil
}

func owned(n, owner *html.Node, format string) bool {
	if n == owner {
		return true
	}
	for parent := n.Parent; parent != nil; parent = parent.Parent {
		if parent == owner {
			return true
		}
		if hasToken(parent, schema.DefaultAttribute, format) {
			return false
		}
	}
	return false
}

// hasToken reports whether a node attribute contains a token.
func hasToken(n *html.Node, attribute, token string) bool {
	return slices.Contains(splitTokens(dom.GetAttribute(n, attribute)), token)
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

func splitTokens(s string) []string {
	return strings.FieldsFunc(s, isSpace)
}

// normalizeSpace collapses whitespace sequences and trims the result.
func normalizeSpace(s string) string {
	return strings.Join(splitTokens(s), " ")
}
