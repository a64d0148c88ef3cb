package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	fieldVersion   = "version"
	fieldTemplates = "templates"
)

// Catalog is a versioned, ordered collection of templates.
type Catalog struct {
	Version   string
	Templates []Template
}

type catalogJSON struct {
	Version   string     `json:"version"`
	Templates []Template `json:"templates"`
}

func (c Catalog) MarshalJSON() ([]byte, error) {
	tmpls := c.Templates
	if tmpls == nil {
		tmpls = []Template{}
	}
	return marshalNoEscape(catalogJSON{Version: c.Version, Templates: tmpls})
}

func (c *Catalog) UnmarshalJSON(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	rawVersion, ok := top[fieldVersion]
	if !ok {
		return fmt.Errorf("%w: missing %q key", ErrMalformedCatalog, fieldVersion)
	}
	rawTemplates, ok := top[fieldTemplates]
	if !ok {
		return fmt.Errorf("%w: missing %q key", ErrMalformedCatalog, fieldTemplates)
	}
	if kindOf(rawVersion) != KindString {
		return fmt.Errorf("%w: %q must be a string, found %s", ErrMalformedCatalog, fieldVersion, kindOf(rawVersion))
	}
	if kindOf(rawTemplates) != KindArray {
		return fmt.Errorf("%w: %q must be an array, found %s", ErrMalformedCatalog, fieldTemplates, kindOf(rawTemplates))
	}

	var version string
	if err := json.Unmarshal(rawVersion, &version); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(rawTemplates, &elems); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	tmpls := make([]Template, 0, len(elems))
	for i, elem := range elems {
		var t Template
		if err := json.Unmarshal(elem, &t); err != nil {
			return fmt.Errorf("%w: template[%d]: %v", ErrMalformedCatalog, i, err)
		}
		tmpls = append(tmpls, t)
	}
	c.Version = version
	c.Templates = tmpls
	return nil
}

// Kind is the JSON type of a template field value.
type Kind int

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

func kindOf(raw json.RawMessage) Kind {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return KindInvalid
	}
	switch raw[0] {
	case 'n':
		return KindNull
	case 't', 'f':
		return KindBool
	case '"':
		return KindString
	case '[':
		return KindArray
	case '{':
		return KindObject
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return KindNumber
	default:
		return KindInvalid
	}
}

// Field is a single named value of a template.
type Field struct {
	Name  string
	Value json.RawMessage
}

// Template is one application descriptor. It is an ordered set of fields
// with no fixed schema; field order is preserved from input to output.
//
// A Template is treated as a value: methods that change it return a copy.
type Template struct {
	fields []Field
}

// NewTemplate builds a template from fields in the given order. Later fields
// with a repeated name replace earlier ones, keeping the first position.
func NewTemplate(fields ...Field) Template {
	t := Template{}
	for _, f := range fields {
		t = t.With(f.Name, f.Value)
	}
	return t
}

// Fields returns a copy of the template's fields in order.
func (t Template) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

func (t Template) Len() int {
	return len(t.fields)
}

// Get returns the raw value of the named field.
func (t Template) Get(name string) (json.RawMessage, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Kind returns the JSON type of the named field, or KindInvalid if absent.
func (t Template) Kind(name string) Kind {
	v, ok := t.Get(name)
	if !ok {
		return KindInvalid
	}
	return kindOf(v)
}

// String returns the named field as a string. Non-string values are
// returned in their canonical JSON form; absent and null fields yield "".
func (t Template) String(name string) string {
	v, ok := t.Get(name)
	if !ok {
		return ""
	}
	switch kindOf(v) {
	case KindNull, KindInvalid:
		return ""
	case KindString:
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	}
	c, err := canonicalJSON(v)
	if err != nil {
		return string(v)
	}
	return c
}

// With returns a copy of t with the named field set to value. An existing
// field keeps its position; a new field is appended.
func (t Template) With(name string, value json.RawMessage) Template {
	fields := make([]Field, 0, len(t.fields)+1)
	replaced := false
	for _, f := range t.fields {
		if f.Name == name {
			fields = append(fields, Field{Name: name, Value: cloneRaw(value)})
			replaced = true
			continue
		}
		fields = append(fields, f)
	}
	if !replaced {
		fields = append(fields, Field{Name: name, Value: cloneRaw(value)})
	}
	return Template{fields: fields}
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}

func (t Template) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, f := range t.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(f.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Template) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("template must be a JSON object, found %s", kindOf(data))
	}
	var fields []Field
	index := map[string]int{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", keyTok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("field %q: %v", key, err)
		}
		// Duplicate keys behave like encoding/json: the last value wins.
		if i, ok := index[key]; ok {
			fields[i].Value = value
			continue
		}
		index[key] = len(fields)
		fields = append(fields, Field{Name: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	t.fields = fields
	return nil
}

// canonicalJSON renders a JSON value with object keys sorted and numbers
// kept in their original textual form.
func canonicalJSON(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("unexpected trailing data after JSON value")
	}
	b, err := marshalNoEscape(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// canonicalTemplate renders the whole template canonically, which makes
// field order irrelevant.
func canonicalTemplate(t Template) string {
	parts := make([]string, 0, len(t.fields))
	for _, f := range sortedFields(t) {
		key, _ := marshalNoEscape(f.Name)
		parts = append(parts, string(key)+":"+canonicalValue(f.Value))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func canonicalValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	c, err := canonicalJSON(raw)
	if err != nil {
		return string(raw)
	}
	return c
}

func marshalNoEscape(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
