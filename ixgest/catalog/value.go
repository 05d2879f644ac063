package catalog

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind is the JSON type a Value was decoded from.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "absent"
	}
}

// Value is one loosely-typed record field. Strings are held decoded; every
// other kind keeps its compacted JSON text so it can be re-emitted unchanged.
type Value struct {
	kind Kind
	str  string
	raw  []byte
}

// Absent is the Value of a key the record does not carry.
var Absent = Value{}

// String returns a string Value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a number Value from its JSON text.
func Number(text string) Value {
	return Value{kind: KindNumber, raw: []byte(text)}
}

// ParseValue builds a Value from raw JSON. Malformed input degrades to a
// string holding the text.
func ParseValue(raw json.RawMessage) Value {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Absent
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return String(string(trimmed))
	}
	compact := buf.Bytes()

	switch compact[0] {
	case '"':
		var s string
		if err := json.Unmarshal(compact, &s); err != nil {
			return String(string(compact))
		}
		return String(s)
	case 'n':
		return Value{kind: KindNull}
	case 't', 'f':
		return Value{kind: KindBool, raw: compact}
	case '[':
		return Value{kind: KindArray, raw: compact}
	case '{':
		return Value{kind: KindObject, raw: compact}
	default:
		return Value{kind: KindNumber, raw: compact}
	}
}

// Kind reports the decoded JSON type.
func (v Value) Kind() Kind { return v.kind }

// IsPresent is false for absent keys and JSON null.
func (v Value) IsPresent() bool {
	return v.kind != KindAbsent && v.kind != KindNull
}

// AsText passes strings through, maps null/absent to "" and renders every
// other kind as compact JSON. HTML characters are not escaped.
func (v Value) AsText() string {
	switch v.kind {
	case KindAbsent, KindNull:
		return ""
	case KindString:
		return v.str
	default:
		return string(v.raw)
	}
}

// AsOptionalText is AsText with "" reported as missing.
func (v Value) AsOptionalText() (string, bool) {
	s := v.AsText()
	return s, s != ""
}

// AsSQLText is AsText escaped and quoted, or NULL when empty.
func (v Value) AsSQLText() string {
	return QuotedOrNull(v.AsText())
}

// JSON returns the value as JSON text; strings are re-encoded, absent is null.
func (v Value) JSON() []byte {
	switch v.kind {
	case KindAbsent, KindNull:
		return []byte("null")
	case KindString:
		return marshalNoEscape(v.str)
	default:
		return v.raw
	}
}

// AsInt returns integral numbers and numeric strings; anything else yields def.
// Fractional numbers are truncated.
func (v Value) AsInt(def int64) (int64, bool) {
	var text string
	switch v.kind {
	case KindNumber:
		text = string(v.raw)
	case KindString:
		text = strings.TrimSpace(v.str)
	default:
		return def, false
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && f >= -9.2e18 && f <= 9.2e18 {
		return int64(f), true
	}
	return def, false
}

// AsFloat returns finite numbers and numeric strings.
func (v Value) AsFloat() (float64, bool) {
	var text string
	switch v.kind {
	case KindNumber:
		text = string(v.raw)
	case KindString:
		text = strings.TrimSpace(v.str)
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatInt renders an integer column value.
func FormatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

// FormatFloat renders a real column value in plain notation.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func marshalNoEscape(v interface{}) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return []byte("null")
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}
