package catalog

import (
	"strings"
)

const (
	// DefaultSource is assumed when a record names no source catalog.
	DefaultSource = "huggingface"
	// UnknownAuthor is used when neither author nor a namespaced id is given.
	UnknownAuthor = "unknown"
)

// Identity is the derived, stable identity of a record.
type Identity struct {
	Source     string
	Author     string
	Name       string
	InternalID string
	Slug       string
}

var unsafeReplacer = strings.NewReplacer("/", "-", "_", "-")

// Resolve derives the identity from the record's id, author, name and source.
// It never fails. Explicit author and name win, even when empty; otherwise id
// is split on "/" and a bare id becomes unknown/<id>, so an empty id gives
// "<source>-unknown-" rather than "<source>--". Records that resolve to the
// same (source, author, name) share an identity; downstream the last upsert
// wins.
func Resolve(id, author, name, source Value) Identity {
	src := DefaultSource
	if source.IsPresent() {
		src = source.AsText()
	}

	var a, n string
	if author.IsPresent() && name.IsPresent() {
		a, n = author.AsText(), name.AsText()
	} else {
		rawID := id.AsText()
		parts := strings.Split(rawID, "/")
		if len(parts) >= 2 {
			a, n = parts[0], parts[1]
		} else {
			a, n = UnknownAuthor, rawID
		}
	}

	safeAuthor := unsafeReplacer.Replace(a)
	safeName := unsafeReplacer.Replace(n)

	return Identity{
		Source:     src,
		Author:     a,
		Name:       n,
		InternalID: src + "-" + safeAuthor + "-" + safeName,
		Slug:       src + "--" + strings.ToLower(safeAuthor) + "--" + strings.ToLower(safeName),
	}
}
