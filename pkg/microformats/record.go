// SPDX-FileCopyrightText: © 2026 The Microtron Authors
//
// SPDX-License-Identifier: AGPL-3.0-only

package microformats

import (
	"bytes"
	"encoding/json"
	"iter"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"codeberg.org/microtron/microtron/pkg/microformats/datetime"
)

// Value is an extracted property value. It is one of [Scalar],
// [*Record], [List], [Concat] or [Timestamp].
type Value interface {
	// Text returns the flattened text of the value.
	Text() string
	value()
}

// Scalar is a plain text value.
type Scalar string

// Text implements [Value].
func (s Scalar) Text() string { return string(s) }
func (Scalar) value()         {}

// Concat is the text of a many-as-one property.
type Concat string

// Text implements [Value].
func (c Concat) Text() string { return string(c) }
func (Concat) value()         {}

// List holds the values of a many property.
type List []Value

// Text implements [Value]. It returns the space joined text of the values.
func (l List) Text() string {
	s := make([]string, 0, len(l))
	for _, v := range l {
		if t := v.Text(); t != "" {
			s = append(s, t)
		}
	}
	return strings.Join(s, " ")
}
func (List) value() {}

// Timestamp is the composed value of a date or datetime property.
type Timestamp struct {
	datetime.DateTime
}

// Text implements [Value].
func (t Timestamp) Text() string { return t.String() }
func (Timestamp) value()         {}

// Record is an extracted structure. Its fields keep their insertion order.
type Record struct {
	// Kind is the format name, or the space separated names of the
	// merged formats.
	Kind string
	// Line is the source line of the matched element, 0 when unknown.
	Line int

	keys   []string
	fields map[string]Value
}

// NewRecord returns an empty record.
func NewRecord(kind string, line int) *Record {
	return &Record{
		Kind:   kind,
		Line:   line,
		keys:   []string{},
		fields: map[string]Value{},
	}
}

func (*Record) value() {}

// Text implements [Value]. It returns the text field of the record.
func (r *Record) Text() string {
	if v, ok := r.fields["text"]; ok {
		return v.Text()
	}
	return ""
}

// Get returns a field value.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Set sets a field value. A new field is added after the existing ones.
func (r *Record) Set(name string, v Value) {
	if r.fields == nil {
		r.fields = map[string]Value{}
	}
	if _, ok := r.fields[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.fields[name] = v
}

// Delete removes a field.
func (r *Record) Delete(name string) {
	if _, ok := r.fields[name]; !ok {
		return
	}
	delete(r.fields, name)
	r.keys = slices.DeleteFunc(r.keys, func(k string) bool { return k == name })
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.keys)
}

// Keys returns the field names, in order.
func (r *Record) Keys() []string {
	return slices.Clone(r.keys)
}

// Fields returns an iterator over the fields, in order.
func (r *Record) Fields() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, k := range r.keys {
			if !yield(k, r.fields[k]) {
				return
			}
		}
	}
}

// merge copies the fields of x into r and appends x kind to r kind.
func (r *Record) merge(x *Record) {
	if r.Kind == "" {
		r.Kind = x.Kind
		r.Line = x.Line
	} else if x.Kind != "" {
		r.Kind += " " + x.Kind
	}
	for k, v := range x.Fields() {
		r.Set(k, v)
	}
}

// MarshalJSON encodes the record as a JSON object. The kind comes
// first, then the fields in order.
func (r *Record) MarshalJSON() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteString(`{"kind":`)
	if err := writeJSON(buf, r.Kind); err != nil {
		return nil, err
	}

	for k, v := range r.Fields() {
		buf.WriteByte(',')
		if err := writeJSON(buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(buf, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// MarshalYAML encodes the record as an ordered YAML mapping.
func (r *Record) MarshalYAML() (any, error) {
	return yamlNode(r), nil
}

func yamlNode(v Value) *yaml.Node {
	switch v := v.(type) {
	case *Record:
		node := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{}}
		node.Content = append(node.Content, yamlScalar("kind"), yamlScalar(v.Kind))
		for k, x := range v.Fields() {
			node.Content = append(node.Content, yamlScalar(k), yamlNode(x))
		}
		return node
	case List:
		node := &yaml.Node{Kind: yaml.SequenceNode, Content: []*yaml.Node{}}
		for _, x := range v {
			node.Content = append(node.Content, yamlNode(x))
		}
		return node
	case Timestamp:
		if v.IsZero() {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		}
		return yamlScalar(v.String())
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	return yamlScalar(v.Text())
}

func yamlScalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// Item holds the records of a format.
type Item struct {
	Format  string    `json:"format" yaml:"format"`
	Records []*Record `json:"records" yaml:"records"`
}
