// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package schema

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// definition is the serialized form of a catalog, shared by every
// file loader.
type definition struct {
	Formats []formatDefinition `json:"formats" yaml:"formats"`
}

type formatDefinition struct {
	Name       string               `json:"name" yaml:"name"`
	Kind       string               `json:"kind" yaml:"kind"`
	Properties []propertyDefinition `json:"properties,omitempty" yaml:"properties,omitempty"`
	Variants   []variantDefinition  `json:"variants,omitempty" yaml:"variants,omitempty"`
}

type propertyDefinition struct {
	Name        string               `json:"name" yaml:"name"`
	Type        string               `json:"type,omitempty" yaml:"type,omitempty"`
	Mandatory   bool                 `json:"mandatory,omitempty" yaml:"mandatory,omitempty"`
	Attribute   string               `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Cardinality string               `json:"cardinality,omitempty" yaml:"cardinality,omitempty"`
	CouldBe     []string             `json:"couldbe,omitempty" yaml:"couldbe,omitempty"`
	Values      []string             `json:"values,omitempty" yaml:"values,omitempty"`
	Separator   string               `json:"separator,omitempty" yaml:"separator,omitempty"`
	Properties  []propertyDefinition `json:"properties,omitempty" yaml:"properties,omitempty"`
}

type variantDefinition struct {
	Value     string `json:"value" yaml:"value"`
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
}

func (d definition) catalog() (*Catalog, error) {
	formats := make([]*Format, len(d.Formats))
	for i, fd := range d.Formats {
		f, err := fd.format()
		if err != nil {
			return nil, err
		}
		formats[i] = f
	}
	return NewCatalog(formats...)
}

func (fd formatDefinition) format() (*Format, error) {
	f := &Format{Name: fd.Name}

	switch strings.ToLower(fd.Kind) {
	case "", "compound":
		f.Kind = Compound
	case "elemental":
		f.Kind = Elemental
	default:
		return nil, fmt.Errorf("%w: format %q: unknown kind %q", ErrInvalidCatalog, fd.Name, fd.Kind)
	}

	var err error
	if f.Properties, err = properties(fd.Properties); err != nil {
		return nil, fmt.Errorf("%w: format %q: %w", ErrInvalidCatalog, fd.Name, err)
	}

	for _, v := range fd.Variants {
		f.Variants = append(f.Variants, Variant{Value: v.Value, Attribute: v.Attribute})
	}

	return f, nil
}

func properties(list []propertyDefinition) ([]*Property, error) {
	res := make([]*Property, len(list))
	for i, pd := range list {
		p := &Property{
			Name:      pd.Name,
			Type:      ParseValueType(pd.Type),
			Mandatory: pd.Mandatory,
			Attribute: pd.Attribute,
			CouldBe:   pd.CouldBe,
			Values:    NewValues(pd.Values...),
			Separator: pd.Separator,
		}
		if p.Type == FormatRef {
			p.TypeRef = pd.Type
		}

		var ok bool
		if p.Cardinality, ok = ParseCardinality(pd.Cardinality); !ok {
			return nil, fmt.Errorf("property %q: unknown cardinality %q", pd.Name, pd.Cardinality)
		}

		var err error
		if p.Properties, err = properties(pd.Properties); err != nil {
			return nil, fmt.Errorf("property %q: %w", pd.Name, err)
		}
		res[i] = p
	}
	return res, nil
}

// newDefinition returns the serialized form of a catalog. Default
// attributes and single cardinalities are left out.
func newDefinition(c *Catalog) definition {
	d := definition{Formats: make([]formatDefinition, 0, c.Len())}
	for _, f := range c.Formats() {
		fd := formatDefinition{
			Name:       f.Name,
			Kind:       f.Kind.String(),
			Properties: propertyDefinitions(f.Properties),
		}
		for _, v := range f.Variants {
			vd := variantDefinition{Value: v.Value}
			if v.Attribute != DefaultVariantAttribute {
				vd.Attribute = v.Attribute
			}
			fd.Variants = append(fd.Variants, vd)
		}
		d.Formats = append(d.Formats, fd)
	}
	return d
}

func propertyDefinitions(list []*Property) []propertyDefinition {
	if len(list) == 0 {
		return nil
	}

	res := make([]propertyDefinition, len(list))
	for i, p := range list {
		pd := propertyDefinition{
			Name:       p.Name,
			Mandatory:  p.Mandatory,
			CouldBe:    p.CouldBe,
			Values:     slices.Sorted(maps.Keys(p.Values)),
			Separator:  p.Separator,
			Properties: propertyDefinitions(p.Properties),
		}
		if p.Type != Text {
			pd.Type = p.TypeName()
		}
		if p.Attribute != DefaultAttribute {
			pd.Attribute = p.Attribute
		}
		if p.Cardinality != Single {
			pd.Cardinality = p.Cardinality.String()
		}
		res[i] = pd
	}
	return res
}

// MarshalJSON encodes the catalog in its JSON file form.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(newDefinition(c))
}

// MarshalYAML encodes the catalog in its YAML file form.
func (c *Catalog) MarshalYAML() (any, error) {
	return newDefinition(c), nil
}
