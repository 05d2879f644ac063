package catalog

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/teranos/catalogix/errors"
)

// Record keys with a fixed meaning. Aliases are listed after the preferred key.
var (
	KeyID               = []string{"id"}
	KeyAuthor           = []string{"author"}
	KeyName             = []string{"name"}
	KeySource           = []string{"source"}
	KeyLikes            = []string{"likes"}
	KeyDownloads        = []string{"downloads"}
	KeyTags             = []string{"tags"}
	KeyDescription      = []string{"description"}
	KeyPipelineTag      = []string{"pipeline_tag", "pipelineTag", "task"}
	KeyRawImageURL      = []string{"raw_image_url", "image_url"}
	KeyBodyContent      = []string{"body_content"}
	KeyBodyContentURL   = []string{"body_content_url"}
	KeySourceTrail      = []string{"source_trail"}
	KeyCommercialSlots  = []string{"commercial_slots"}
	KeyNotebookLM       = []string{"notebooklm_summary"}
	KeyVelocityScore    = []string{"velocity_score"}
	KeyLastCommercialAt = []string{"last_commercial_at"}
	KeyLicense          = []string{"license_spdx", "license"}
	KeyEntityType       = []string{"type"}
)

var knownKeys = func() map[string]bool {
	known := map[string]bool{}
	for _, group := range [][]string{
		KeyID, KeyAuthor, KeyName, KeySource, KeyLikes, KeyDownloads, KeyTags,
		KeyDescription, KeyPipelineTag, KeyRawImageURL, KeyBodyContent,
		KeyBodyContentURL, KeySourceTrail, KeyCommercialSlots, KeyNotebookLM,
		KeyVelocityScore, KeyLastCommercialAt, KeyLicense, KeyEntityType,
	} {
		for _, k := range group {
			known[k] = true
		}
	}
	return known
}()

// Record is one input object. Keys keep their input order so extension
// fields re-serialize deterministically.
type Record struct {
	keys   []string
	fields map[string]Value
}

// NewRecord builds a Record from key/value pairs, mainly for tests.
func NewRecord(pairs ...interface{}) Record {
	r := Record{fields: map[string]Value{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		var v Value
		switch val := pairs[i+1].(type) {
		case Value:
			v = val
		case string:
			v = String(val)
		default:
			raw, err := json.Marshal(val)
			if err != nil {
				continue
			}
			v = ParseValue(raw)
		}
		r.set(key, v)
	}
	return r
}

func (r *Record) set(key string, v Value) {
	if _, ok := r.fields[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = v
}

// Get returns the first present value among keys. If none is present it
// returns whatever the first existing key holds (possibly null), else Absent.
func (r Record) Get(keys ...string) Value {
	fallback := Absent
	for _, k := range keys {
		v, ok := r.fields[k]
		if !ok {
			continue
		}
		if v.IsPresent() {
			return v
		}
		if fallback.kind == KindAbsent {
			fallback = v
		}
	}
	return fallback
}

// Extensions returns the keys with no fixed meaning, in input order.
func (r Record) Extensions() []string {
	var out []string
	for _, k := range r.keys {
		if !knownKeys[k] {
			out = append(out, k)
		}
	}
	return out
}

// ExtensionJSON serializes the extension fields as one compact JSON object,
// or "" when there are none.
func (r Record) ExtensionJSON() string {
	ext := r.Extensions()
	if len(ext) == 0 {
		return ""
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range ext {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(marshalNoEscape(k))
		buf.WriteByte(':')
		buf.Write(r.fields[k].JSON())
	}
	buf.WriteByte('}')
	return buf.String()
}

// Len is the number of keys.
func (r Record) Len() int { return len(r.keys) }

// DecodeRecords parses a JSON array of objects. Blank input and an empty
// array are reported with ErrEmptyInput; anything that is not an array of
// objects is ErrInvalidJSON.
func DecodeRecords(data []byte) ([]Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, emptyInput(EmptyReasonNoContent)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrInvalidJSON), "JSON parse error")
	}
	if elems == nil {
		// top-level null decodes without error
		return nil, errors.Wrap(ErrInvalidJSON, "expected a JSON array, got null")
	}
	if len(elems) == 0 {
		return nil, emptyInput(EmptyReasonEmptyArray)
	}

	records := make([]Record, 0, len(elems))
	for i, raw := range elems {
		rec, err := decodeObject(raw)
		if err != nil {
			return nil, errors.Wrapf(errors.Mark(err, ErrInvalidJSON), "element %d", i)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeObject(raw json.RawMessage) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Record{}, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Record{}, errors.Newf("expected object, got %s", describeToken(tok))
	}

	rec := Record{fields: map[string]Value{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Record{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Record{}, errors.Newf("unexpected object key %v", tok)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return Record{}, err
		}
		rec.set(key, ParseValue(val))
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return Record{}, err
	}
	return rec, nil
}

func describeToken(tok json.Token) string {
	switch t := tok.(type) {
	case json.Delim:
		if t == '[' {
			return "array"
		}
		return string(t)
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "bool"
	case nil:
		return "null"
	default:
		return "value"
	}
}
