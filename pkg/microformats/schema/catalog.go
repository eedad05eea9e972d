// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCatalog is returned when a catalog definition is not valid.
var ErrInvalidCatalog = errors.New("invalid catalog")

const (
	// DefaultAttribute is the attribute holding property tokens.
	DefaultAttribute = "class"

	// DefaultVariantAttribute is the attribute holding elemental tokens.
	DefaultVariantAttribute = "rel"
)

// Catalog is a read-only index of formats. It is safe for concurrent use.
type Catalog struct {
	formats []*Format
	index   map[string]*Format
}

// NewCatalog returns a new [Catalog] after checking the given formats.
// The catalog keeps the formats order. Empty property and variant
// attributes are set to their default value.
func NewCatalog(formats ...*Format) (*Catalog, error) {
	c := &Catalog{
		formats: make([]*Format, 0, len(formats)),
		index:   make(map[string]*Format, len(formats)),
	}

	errs := []error{}
	for _, f := range formats {
		if err := checkToken(f.Name); err != nil {
			errs = append(errs, fmt.Errorf("%w: format %q: %w", ErrInvalidCatalog, f.Name, err))
			continue
		}
		if _, ok := c.index[f.Name]; ok {
			errs = append(errs, fmt.Errorf("%w: duplicate format %q", ErrInvalidCatalog, f.Name))
			continue
		}
		c.index[f.Name] = f
		c.formats = append(c.formats, f)
	}

	for _, f := range c.formats {
		errs = append(errs, c.check(f)...)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a format by its name.
func (c *Catalog) Get(name string) (*Format, bool) {
	f, ok := c.index[name]
	return f, ok
}

// Names returns the format names, in declaration order.
func (c *Catalog) Names() []string {
	res := make([]string, len(c.formats))
	for i, f := range c.formats {
		res[i] = f.Name
	}
	return res
}

// Formats returns the formats, in declaration order.
func (c *Catalog) Formats() []*Format {
	return c.formats
}

// Len returns the number of formats.
func (c *Catalog) Len() int {
	return len(c.formats)
}

func (c *Catalog) check(f *Format) []error {
	wrap := func(err error) error {
		return fmt.Errorf("%w: format %q: %w", ErrInvalidCatalog, f.Name, err)
	}

	errs := []error{}
	switch f.Kind {
	case Elemental:
		if len(f.Variants) == 0 {
			errs = append(errs, wrap(errors.New("elemental format without variant")))
		}
		if len(f.Properties) > 0 {
			errs = append(errs, wrap(errors.New("elemental format with properties")))
		}
		for i, v := range f.Variants {
			if v.Attribute == "" {
				v.Attribute = DefaultVariantAttribute
				f.Variants[i] = v
			}
			if err := checkToken(v.Value); err != nil {
				errs = append(errs, wrap(fmt.Errorf("variant: %w", err)))
			}
			if err := checkToken(v.Attribute); err != nil {
				errs = append(errs, wrap(fmt.Errorf("variant %q attribute: %w", v.Value, err)))
			}
		}
	default:
		for _, err := range c.checkProperties(f.Properties) {
			errs = append(errs, wrap(err))
		}
	}

	return errs
}

func (c *Catalog) checkProperties(properties []*Property) []error {
	errs := []error{}
	for _, p := range properties {
		wrap := func(err error) error {
			return fmt.Errorf("property %q: %w", p.Name, err)
		}

		if err := checkToken(p.Name); err != nil {
			errs = append(errs, wrap(err))
			continue
		}
		if p.Attribute == "" {
			p.Attribute = DefaultAttribute
		}
		if err := checkToken(p.Attribute); err != nil {
			errs = append(errs, wrap(fmt.Errorf("attribute: %w", err)))
		}
		if p.Type == FormatRef {
			if _, ok := c.index[p.TypeRef]; !ok {
				errs = append(errs, wrap(fmt.Errorf("unknown type %q", p.TypeRef)))
			}
		}
		for _, name := range p.CouldBe {
			if _, ok := c.index[name]; !ok {
				errs = append(errs, wrap(fmt.Errorf("unknown couldbe format %q", name)))
			}
		}
		if p.Cardinality == ManyAsOne && !p.Type.TextBearing() {
			errs = append(errs, wrap(fmt.Errorf("%s cardinality with %s type", ManyAsOne, p.TypeName())))
		}

		for _, err := range c.checkProperties(p.Properties) {
			errs = append(errs, wrap(err))
		}
	}
	return errs
}

// checkToken ensures a name can be used as a token in an XPath
// expression.
func checkToken(s string) error {
	if s == "" {
		return errors.New("empty name")
	}
	if strings.ContainsAny(s, " \t\r\n\f\"'[]()=@/") {
		return fmt.Errorf("invalid name %q", s)
	}
	return nil
}
