package sym

import (
	"testing"
	"unicode/utf8"
)

func TestSymbolToCommandAndCommandToSymbolAreBidirectional(t *testing.T) {
	for symbol, cmd := range SymbolToCommand {
		got, ok := CommandToSymbol[cmd]
		if !ok {
			t.Errorf("SymbolToCommand has %q → %q, but CommandToSymbol has no entry for %q", symbol, cmd, cmd)
			continue
		}
		if got != symbol {
			t.Errorf("bidirectional mismatch: SymbolToCommand[%q] = %q, but CommandToSymbol[%q] = %q", symbol, cmd, cmd, got)
		}
	}

	if len(SymbolToCommand) != len(CommandToSymbol) {
		t.Errorf("map size mismatch: SymbolToCommand has %d entries, CommandToSymbol has %d",
			len(SymbolToCommand), len(CommandToSymbol))
	}
}

func TestCommandDescriptionsCoversAllCommands(t *testing.T) {
	for cmd := range CommandToSymbol {
		if _, ok := CommandDescriptions[cmd]; !ok {
			t.Errorf("CommandDescriptions missing entry for command %q", cmd)
		}
	}
	for cmd := range CommandDescriptions {
		if _, ok := CommandToSymbol[cmd]; !ok {
			t.Errorf("CommandDescriptions has entry for %q which is not in CommandToSymbol", cmd)
		}
	}
}

func TestSymbolsAreSingleRunes(t *testing.T) {
	for _, symbol := range []string{AM, IX, Verify, Pulse, PulseOpen, PulseClose, DB, Blob} {
		if !utf8.ValidString(symbol) || utf8.RuneCountInString(symbol) != 1 {
			t.Errorf("symbol %q is not a single rune", symbol)
		}
	}
}

func TestShort(t *testing.T) {
	if got := Short("ix", "Ingest"); got != IX+" Ingest" {
		t.Errorf("Short(ix) = %q", got)
	}
	if got := Short("version", "Show version"); got != "Show version" {
		t.Errorf("Short(version) = %q", got)
	}
}
