// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package schema describes the microformat definitions used by the extractor.
//
// A [Catalog] is an immutable index of [Format] values. It can be built
// in code with [NewCatalog], loaded from an XML, YAML, JSON or TOML file
// with [Load], or taken from the embedded default definitions with [Default].
package schema

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind is the kind of a format.
type Kind int

const (
	// Compound formats are records with named properties, matched by a
	// class token on their root element.
	Compound Kind = iota

	// Elemental formats are link annotations, matched by an attribute
	// token (usually rel) on the link element.
	Elemental
)

func (k Kind) String() string {
	if k == Elemental {
		return "elemental"
	}
	return "compound"
}

// ValueType is the declared type of a property value.
type ValueType int

// Value types. FormatRef delegates the extraction to another format
// whose name is given by [Property.TypeRef].
const (
	Text ValueType = iota
	URL
	Email
	Image
	Object
	Date
	DateTime
	FormatRef
)

var valueTypeNames = map[ValueType]string{
	Text:     "text",
	URL:      "url",
	Email:    "email",
	Image:    "image",
	Object:   "object",
	Date:     "date",
	DateTime: "datetime",
}

func (t ValueType) String() string {
	if s, ok := valueTypeNames[t]; ok {
		return s
	}
	return "format"
}

// TextBearing reports whether values of this type flatten to a text.
func (t ValueType) TextBearing() bool {
	return t != Image && t != FormatRef
}

// ParseValueType returns the [ValueType] matching a type name. Any name that
// is not a primitive type is a format reference. An empty name is [Text].
func ParseValueType(name string) ValueType {
	if name == "" {
		return Text
	}
	for t, s := range valueTypeNames {
		if s == name {
			return t
		}
	}
	return FormatRef
}

// Cardinality is how many values a property holds.
type Cardinality int

const (
	// Single keeps the first value.
	Single Cardinality = iota
	// Many keeps every value in a list.
	Many
	// ManyAsOne concatenates every value text with the property separator.
	ManyAsOne
)

func (c Cardinality) String() string {
	switch c {
	case Many:
		return "many"
	case ManyAsOne:
		return "manyasone"
	}
	return "single"
}

// ParseCardinality returns the [Cardinality] matching its name.
func ParseCardinality(name string) (Cardinality, bool) {
	switch strings.ToLower(name) {
	case "", "single", "one":
		return Single, true
	case "many":
		return Many, true
	case "manyasone", "many-as-one":
		return ManyAsOne, true
	}
	return Single, false
}

// Variant is one link annotation of an elemental format.
type Variant struct {
	// Value is the token searched for (the "tag" of rel="tag").
	Value string
	// Attribute is the attribute holding the token.
	Attribute string
}

// Format is a microformat definition.
type Format struct {
	Name       string
	Kind       Kind
	Properties []*Property
	Variants   []Variant
}

// Property is a property declaration of a compound format.
type Property struct {
	// Name is the property name and the token searched for.
	Name string
	Type ValueType
	// TypeRef is the delegated format name when Type is [FormatRef].
	TypeRef   string
	Mandatory bool
	// Attribute holds the token. It is "class" unless set otherwise.
	Attribute   string
	Cardinality Cardinality
	// CouldBe lists the formats tried, in order, before the primitive
	// extraction.
	CouldBe []string
	// Values is the lower-cased allowed values set. Nil allows anything.
	Values map[string]struct{}
	// Separator joins the values of a [ManyAsOne] property.
	Separator string
	// Properties is an optional compound sub-schema.
	Properties []*Property
}

// Allows reports whether a value text is in the allowed values.
// Any text is allowed when the property has no value set.
func (p *Property) Allows(text string) bool {
	if p.Values == nil {
		return true
	}
	_, ok := p.Values[cases.Lower(language.Und).String(text)]
	return ok
}

// TypeName returns the declared type name.
func (p *Property) TypeName() string {
	if p.Type == FormatRef {
		return p.TypeRef
	}
	return p.Type.String()
}

// Nested returns the compound sub-schema of the property as a [Format]
// named after the property. It returns nil when the property has no
// sub-schema.
func (p *Property) Nested() *Format {
	if len(p.Properties) == 0 {
		return nil
	}
	return &Format{
		Name:       p.Name,
		Kind:       Compound,
		Properties: p.Properties,
	}
}

// NewValues returns an allowed values set from a list of values.
func NewValues(values ...string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	caser := cases.Lower(language.Und)
	res := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			res[caser.String(v)] = struct{}{}
		}
	}
	return res
}
