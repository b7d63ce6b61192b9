package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Metadata keys with first-class fields. They cannot be used as extension keys.
const (
	keyCategory      = "category"
	keyDescription   = "description"
	keyTags          = "tags"
	keyCreatedAt     = "createdAt"
	keyUpdatedAt     = "updatedAt"
	keySyncTimestamp = "syncTimestamp"
	keySyncSource    = "syncSource"
)

var reservedKeys = map[string]struct{}{
	keyCategory: {}, keyDescription: {}, keyTags: {},
	keyCreatedAt: {}, keyUpdatedAt: {}, keySyncTimestamp: {}, keySyncSource: {},
}

// ErrReservedKey is returned when an extension key collides with a first-class field.
var ErrReservedKey = errors.New("reserved metadata key")

// ErrUnsupportedValue is returned for extension values outside the scalar
// and array-of-scalar kinds.
var ErrUnsupportedValue = errors.New("unsupported metadata value")

// Metadata is the typed metadata of a list entry. In JSON it is one flat
// object: the first-class keys followed by the extension keys in insertion
// order. Timestamps are encoded as epoch milliseconds.
type Metadata struct {
	Category    string
	Description string
	Tags        []string

	// CreatedAt and UpdatedAt are maintained by the store.
	CreatedAt time.Time
	UpdatedAt time.Time

	// SyncTimestamp and SyncSource are stamped on backend entries by the merge engine.
	SyncTimestamp time.Time
	SyncSource    string

	Extra Extensions
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	c := m
	if m.Tags != nil {
		c.Tags = append([]string(nil), m.Tags...)
	}
	c.Extra = m.Extra.Clone()
	return c
}

// MarshalJSON implements json.Marshaler.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true

	write := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(b)
		return nil
	}

	fields := []struct {
		key  string
		skip bool
		val  any
	}{
		{keyCategory, m.Category == "", m.Category},
		{keyDescription, m.Description == "", m.Description},
		{keyTags, len(m.Tags) == 0, m.Tags},
		{keyCreatedAt, m.CreatedAt.IsZero(), m.CreatedAt.UnixMilli()},
		{keyUpdatedAt, m.UpdatedAt.IsZero(), m.UpdatedAt.UnixMilli()},
		{keySyncTimestamp, m.SyncTimestamp.IsZero(), m.SyncTimestamp.UnixMilli()},
		{keySyncSource, m.SyncSource == "", m.SyncSource},
	}
	for _, f := range fields {
		if f.skip {
			continue
		}
		if err := write(f.key, f.val); err != nil {
			return nil, err
		}
	}

	for _, k := range m.Extra.Keys() {
		v, _ := m.Extra.Get(k)
		if err := write(k, v); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Unknown keys are kept in Extra
// in document order.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	*m = Metadata{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metadata: unexpected token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("metadata %s: %w", key, err)
		}

		if err := m.setField(key, raw); err != nil {
			return fmt.Errorf("metadata %s: %w", key, err)
		}
	}

	_, err = dec.Token()
	return err
}

func (m *Metadata) setField(key string, raw json.RawMessage) error {
	switch key {
	case keyCategory:
		return json.Unmarshal(raw, &m.Category)
	case keyDescription:
		return json.Unmarshal(raw, &m.Description)
	case keyTags:
		return json.Unmarshal(raw, &m.Tags)
	case keyCreatedAt:
		return decodeTimestamp(raw, &m.CreatedAt)
	case keyUpdatedAt:
		return decodeTimestamp(raw, &m.UpdatedAt)
	case keySyncTimestamp:
		return decodeTimestamp(raw, &m.SyncTimestamp)
	case keySyncSource:
		return json.Unmarshal(raw, &m.SyncSource)
	}

	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return m.Extra.Set(key, v)
}

// decodeTimestamp accepts epoch milliseconds, an RFC 3339 string or null.
func decodeTimestamp(raw json.RawMessage, dst *time.Time) error {
	s := strings.TrimSpace(string(raw))
	switch {
	case s == "null":
		*dst = time.Time{}
		return nil
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return err
		}
		t, err := parseTimestamp(str)
		if err != nil {
			return err
		}
		*dst = t
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	ms, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("invalid timestamp %s", s)
		}
		ms = int64(f)
	}
	*dst = time.UnixMilli(ms).UTC()
	return nil
}

// ValueKind enumerates the value kinds an extension key may hold.
type ValueKind int

const (
	// KindNull is the JSON null value.
	KindNull ValueKind = iota
	// KindString is a JSON string.
	KindString
	// KindNumber is a JSON number, kept in its exact decimal form.
	KindNumber
	// KindBool is a JSON boolean.
	KindBool
	// KindArray is a flat array of non-array values.
	KindArray
)

// Value is an extension value: a scalar or a flat array of scalars.
type Value struct {
	kind  ValueKind
	str   string
	num   float64
	lit   string // exact number literal, empty for NaN and infinities
	boolv bool
	items []Value
}

// NullValue returns the null value.
func NullValue() Value { return Value{kind: KindNull} }

// StringValue returns a string value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue returns a number value holding n.
func NumberValue(n float64) Value {
	v := Value{kind: KindNumber, num: n}
	if !math.IsNaN(n) && !math.IsInf(n, 0) {
		v.lit = strconv.FormatFloat(n, 'g', -1, 64)
	}
	return v
}

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{kind: KindBool, boolv: b} }

// Kind reports which kind of value v holds.
func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string payload, or "" for other kinds.
func (v Value) Str() string { return v.str }

// Num returns the number payload as the nearest float64.
func (v Value) Num() float64 { return v.num }

// NumberText returns the number exactly as it was written, for example
// "9007199254740993", which a float64 cannot hold.
func (v Value) NumberText() string { return v.lit }

// Int64 returns the number payload as an int64 when it is an integer literal
// in range.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	n, err := strconv.ParseInt(v.lit, 10, 64)
	return n, err == nil
}

// Bool returns the boolean payload, or false for other kinds.
func (v Value) Bool() bool { return v.boolv }

// Items returns a copy of the array elements.
func (v Value) Items() []Value { return append([]Value(nil), v.items...) }

// Equal reports whether v and o hold the same kind and payload. Numbers
// compare by exact decimal value, so 1 and 1.0 are equal.
func (v Value) Equal(o Value) bool { return v.kind == o.kind && v.equalPayload(o) }

// ArrayValue builds an array value. Nested arrays are rejected.
func ArrayValue(items ...Value) (Value, error) {
	for i, it := range items {
		if it.kind == KindArray {
			return Value{}, fmt.Errorf("%w: nested array at index %d", ErrUnsupportedValue, i)
		}
	}
	return Value{kind: KindArray, items: append([]Value(nil), items...)}, nil
}

func (v Value) equalPayload(o Value) bool {
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return numbersEqual(v, o)
	case KindBool:
		return v.boolv == o.boolv
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
	}
	return true
}

func numbersEqual(a, b Value) bool {
	if a.lit == "" || b.lit == "" {
		return a.num == b.num
	}
	if a.lit == b.lit {
		return true
	}
	var x, y big.Rat
	if _, ok := x.SetString(a.lit); !ok {
		return false
	}
	if _, ok := y.SetString(b.lit); !ok {
		return false
	}
	return x.Cmp(&y) == 0
}

// MarshalJSON implements json.Marshaler. Numbers are written with the exact
// literal they were decoded from.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if v.lit == "" {
			return json.Marshal(v.num)
		}
		return []byte(v.lit), nil
	case KindBool:
		return json.Marshal(v.boolv)
	case KindArray:
		items := v.items
		if items == nil {
			items = []Value{}
		}
		return json.Marshal(items)
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := valueFromAny(raw, true)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func valueFromAny(raw any, allowArray bool) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return StringValue(x), nil
	case bool:
		return BoolValue(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: number %s", ErrUnsupportedValue, x)
		}
		return Value{kind: KindNumber, num: f, lit: x.String()}, nil
	case float64:
		return NumberValue(x), nil
	case []any:
		if !allowArray {
			return Value{}, fmt.Errorf("%w: nested array", ErrUnsupportedValue)
		}
		items := make([]Value, 0, len(x))
		for _, it := range x {
			iv, err := valueFromAny(it, false)
			if err != nil {
				return Value{}, err
			}
			items = append(items, iv)
		}
		return Value{kind: KindArray, items: items}, nil
	}
	return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
}

// Extensions is an insertion-ordered map of extension keys to values.
type Extensions struct {
	keys   []string
	values map[string]Value
}

// Set stores v under key, keeping the key's original position if it already exists.
func (e *Extensions) Set(key string, v Value) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrReservedKey)
	}
	if _, ok := reservedKeys[key]; ok {
		return fmt.Errorf("%w: %s", ErrReservedKey, key)
	}
	if e.values == nil {
		e.values = make(map[string]Value)
	}
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = v
	return nil
}

// Get returns the value stored under key.
func (e Extensions) Get(key string) (Value, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Delete removes key.
func (e *Extensions) Delete(key string) {
	if _, ok := e.values[key]; !ok {
		return
	}
	delete(e.values, key)
	for i, k := range e.keys {
		if k == key {
			e.keys = append(e.keys[:i], e.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (e Extensions) Keys() []string { return append([]string(nil), e.keys...) }

// Len returns the number of keys.
func (e Extensions) Len() int { return len(e.keys) }

// Clone returns a deep copy.
func (e Extensions) Clone() Extensions {
	if len(e.keys) == 0 {
		return Extensions{}
	}
	c := Extensions{keys: append([]string(nil), e.keys...), values: make(map[string]Value, len(e.values))}
	for k, v := range e.values {
		c.values[k] = v
	}
	return c
}

// Equal reports whether both hold the same keys in the same order with equal values.
func (e Extensions) Equal(o Extensions) bool {
	if len(e.keys) != len(o.keys) {
		return false
	}
	for i, k := range e.keys {
		if o.keys[i] != k || !e.values[k].Equal(o.values[k]) {
			return false
		}
	}
	return true
}
