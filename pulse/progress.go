// Package pulse holds the infrastructure shared by long-running runs.
package pulse

// ProgressEmitter defines the domain-agnostic interface for emitting progress
// updates during a run. Domain packages implement it for their surfaces
// (terminal, JSON events).
type ProgressEmitter interface {
	// EmitStage announces the start of a processing stage
	EmitStage(stage string, message string)

	// EmitProgress announces progress with a count and optional metadata
	EmitProgress(count int, metadata map[string]interface{})

	// EmitComplete announces successful completion with summary
	EmitComplete(summary map[string]interface{})

	// EmitError announces an error during processing
	EmitError(stage string, err error)

	// EmitInfo emits general informational message
	EmitInfo(message string)
}

// NopEmitter discards everything.
type NopEmitter struct{}

func (NopEmitter) EmitStage(string, string)                {}
func (NopEmitter) EmitProgress(int, map[string]interface{}) {}
func (NopEmitter) EmitComplete(map[string]interface{})      {}
func (NopEmitter) EmitError(string, error)                  {}
func (NopEmitter) EmitInfo(string)                          {}
