// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package schema

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/antchfx/xmlquery"
)

// decodeXML reads a catalog in the XML layout:
//
//	<microformats>
//	  <vcard type="compound">
//	    <fn mandatory="yes"/>
//	    <email type="email" many="many"/>
//	  </vcard>
//	  <rel-tag type="elemental">
//	    <tag attribute="rel"/>
//	  </rel-tag>
//	</microformats>
//
// Formats and properties are named after their element, unless they
// carry a name attribute.
func decodeXML(r io.Reader) (definition, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return definition{}, err
	}

	root := xmlquery.FindOne(doc, "/microformats")
	if root == nil {
		return definition{}, fmt.Errorf("%w: no microformats root element", ErrInvalidCatalog)
	}

	d := definition{}
	for n := range childElements(root) {
		fd := formatDefinition{
			Name: xmlName(n),
			Kind: n.SelectAttr("type"),
		}

		switch fd.Kind {
		case "elemental":
			for c := range childElements(n) {
				fd.Variants = append(fd.Variants, variantDefinition{
					Value:     xmlName(c),
					Attribute: c.SelectAttr("attribute"),
				})
			}
		case "compound", "":
			fd.Properties = xmlProperties(n)
		default:
			return definition{}, fmt.Errorf("%w: format %q: unknown type %q", ErrInvalidCatalog, fd.Name, fd.Kind)
		}

		d.Formats = append(d.Formats, fd)
	}

	if len(d.Formats) == 0 {
		return definition{}, fmt.Errorf("%w: no format", ErrInvalidCatalog)
	}
	return d, nil
}

func xmlProperties(n *xmlquery.Node) []propertyDefinition {
	res := []propertyDefinition{}
	for c := range childElements(n) {
		pd := propertyDefinition{
			Name:        xmlName(c),
			Type:        c.SelectAttr("type"),
			Mandatory:   c.SelectAttr("mandatory") == "yes",
			Attribute:   c.SelectAttr("attribute"),
			Cardinality: c.SelectAttr("many"),
			Separator:   c.SelectAttr("separator"),
			Properties:  xmlProperties(c),
		}
		if s := c.SelectAttr("couldbe"); s != "" {
			pd.CouldBe = strings.Split(s, "|")
		}
		if s := c.SelectAttr("values"); s != "" {
			pd.Values = strings.Split(s, ",")
		}
		res = append(res, pd)
	}
	return res
}

func xmlName(n *xmlquery.Node) string {
	if name := n.SelectAttr("name"); name != "" {
		return name
	}
	return n.Data
}

func childElements(n *xmlquery.Node) iter.Seq[*xmlquery.Node] {
	return func(yield func(*xmlquery.Node) bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xmlquery.ElementNode {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}
