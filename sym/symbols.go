// Package sym defines the glyphs catalogix prints next to its commands and
// lifecycle log lines. They are stable across CLI output and documentation.
package sym

// Command glyphs.
const (
	AM     = "≡" // am: configuration
	IX     = "⨳" // ix: ingest a catalog export
	Verify = "⊨" // verify: apply artifacts to a scratch database
)

// System glyphs.
const (
	Pulse      = "꩜" // scheduler
	PulseOpen  = "✿" // scheduler start
	PulseClose = "❀" // scheduler drained
	DB         = "⊔" // database layer
	Blob       = "▤" // object storage
)

// SymbolToCommand maps glyph strings to their command names.
var SymbolToCommand = map[string]string{
	AM:     "am",
	IX:     "ix",
	Verify: "verify",
}

// CommandToSymbol maps command names to their glyphs.
var CommandToSymbol = map[string]string{
	"am":     AM,
	"ix":     IX,
	"verify": Verify,
}

// CommandDescriptions is the one-line help shown beside each glyph.
var CommandDescriptions = map[string]string{
	"am":     "Configuration: resolved settings and where they came from",
	"ix":     "Ingest: turn a catalog export into SQL and batch artifacts",
	"verify": "Verify: apply generated SQL to an in-memory models table",
}

// Short prefixes a command's short help with its glyph.
func Short(command, text string) string {
	if g, ok := CommandToSymbol[command]; ok {
		return g + " " + text
	}
	return text
}
