package catalog

import (
	"fmt"

	"github.com/teranos/catalogix/internal/util"
)

const (
	// DefaultPipelineTag is used when a record has no task label.
	DefaultPipelineTag = "other"
	// DefaultEntityType is used when a record has no type.
	DefaultEntityType = "model"
	// searchTextLimit caps the projection's search_text in runes.
	searchTextLimit = 2000
)

// Fields are the normalized, not yet escaped, metadata of a record.
type Fields struct {
	Description      string
	Tags             string // JSON text
	PipelineTag      string
	Likes            int64
	Downloads        int64
	RawImageURL      string
	Body             string
	BodyContentURL   string
	SourceTrail      string
	CommercialSlots  string
	NotebookLM       string
	VelocityScore    *float64
	LastCommercialAt string
	License          string
	EntityType       string
	MetaJSON         string // extension fields as one JSON object
}

// Normalize coerces every field to its canonical form. It never fails:
// oddly typed values fall back and each fallback is reported as a note.
func Normalize(rec Record) (Fields, []string) {
	var notes []string
	f := Fields{
		Description:      rec.Get(KeyDescription...).AsText(),
		Tags:             normalizeTags(rec.Get(KeyTags...)),
		RawImageURL:      rec.Get(KeyRawImageURL...).AsText(),
		Body:             rec.Get(KeyBodyContent...).AsText(),
		BodyContentURL:   rec.Get(KeyBodyContentURL...).AsText(),
		SourceTrail:      rec.Get(KeySourceTrail...).AsText(),
		CommercialSlots:  rec.Get(KeyCommercialSlots...).AsText(),
		NotebookLM:       rec.Get(KeyNotebookLM...).AsText(),
		LastCommercialAt: rec.Get(KeyLastCommercialAt...).AsText(),
		License:          rec.Get(KeyLicense...).AsText(),
		MetaJSON:         rec.ExtensionJSON(),
	}

	f.PipelineTag = rec.Get(KeyPipelineTag...).AsText()
	if f.PipelineTag == "" {
		f.PipelineTag = DefaultPipelineTag
	}
	f.EntityType = rec.Get(KeyEntityType...).AsText()
	if f.EntityType == "" {
		f.EntityType = DefaultEntityType
	}

	f.Likes, notes = counter(rec, "likes", KeyLikes, notes)
	f.Downloads, notes = counter(rec, "downloads", KeyDownloads, notes)

	if v := rec.Get(KeyVelocityScore...); v.IsPresent() {
		if score, ok := v.AsFloat(); ok {
			f.VelocityScore = util.Ptr(score)
		} else {
			notes = append(notes, fmt.Sprintf("velocity_score %s is not numeric, stored NULL", v.Kind()))
		}
	}

	return f, notes
}

func counter(rec Record, label string, keys []string, notes []string) (int64, []string) {
	v := rec.Get(keys...)
	if !v.IsPresent() {
		return 0, notes
	}
	n, ok := v.AsInt(0)
	if !ok {
		notes = append(notes, fmt.Sprintf("%s %s is not numeric, using 0", label, v.Kind()))
	}
	return n, notes
}

// normalizeTags keeps arrays as JSON, maps missing tags to [] and renders any
// other value through AsText, so an object becomes its JSON text.
func normalizeTags(v Value) string {
	if !v.IsPresent() {
		return "[]"
	}
	return v.AsText()
}

// SearchText is the body, or the description when there is none, cut to
// 2000 runes.
func (f Fields) SearchText() string {
	text := f.Body
	if text == "" {
		text = f.Description
	}
	runes := []rune(text)
	if len(runes) > searchTextLimit {
		return string(runes[:searchTextLimit])
	}
	return text
}
