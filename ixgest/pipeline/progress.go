package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/catalogix/pulse"
)

// Summary keys shared by the emitters.
const (
	SummaryTotal        = "total"
	SummaryWithImage    = "with_image"
	SummaryWithoutImage = "without_image"
	SummaryImagePercent = "image_percent"
)

var (
	_ pulse.ProgressEmitter = (*CLIEmitter)(nil)
	_ pulse.ProgressEmitter = (*JSONEmitter)(nil)
)

// ProgressEvent represents a structured JSON progress event
type ProgressEvent struct {
	Type      string                 `json:"type"` // "stage", "progress", "complete", "error", "info"
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// CLIEmitter prints progress for humans using pterm. Everything goes to
// stderr; stdout is left to machine output.
type CLIEmitter struct {
	verbosity int
	out       io.Writer
}

// NewCLIEmitterTo creates a CLI progress emitter on w, normally stderr
func NewCLIEmitterTo(verbosity int, w io.Writer) *CLIEmitter {
	return &CLIEmitter{verbosity: verbosity, out: w}
}

// EmitStage prints a stage announcement
func (e *CLIEmitter) EmitStage(stage string, message string) {
	pterm.Fprintln(e.out, fmt.Sprintf("🔄 %s: %s", pterm.LightCyan(stage), message))
}

// EmitProgress prints a processed count
func (e *CLIEmitter) EmitProgress(count int, metadata map[string]interface{}) {
	itemType, ok := metadata["type"].(string)
	if !ok {
		itemType = "items"
	}
	pterm.Fprintln(e.out, fmt.Sprintf("✅ Processed %s %s", pterm.Green(fmt.Sprintf("%d", count)), itemType))
}

// EmitComplete prints the run summary
func (e *CLIEmitter) EmitComplete(summary map[string]interface{}) {
	pterm.Fprintln(e.out, "SQL Generation Summary:")
	pterm.Fprintln(e.out, fmt.Sprintf("  Total models processed: %v", summary[SummaryTotal]))
	pterm.Fprintln(e.out, fmt.Sprintf("  Models with images: %v (%.1f%%)", summary[SummaryWithImage], toFloat(summary[SummaryImagePercent])))
	pterm.Fprintln(e.out, fmt.Sprintf("  Models without images: %v", summary[SummaryWithoutImage]))

	if e.verbosity >= 1 {
		for _, key := range []string{"run_id", "out_dir", "batches", "peak_in_flight", "duration_ms"} {
			if v, ok := summary[key]; ok {
				pterm.Fprintln(e.out, fmt.Sprintf("  %s: %v", key, v))
			}
		}
	}
	pterm.Success.WithWriter(e.out).Println("SQL generated successfully.")
}

// EmitError prints an error
func (e *CLIEmitter) EmitError(stage string, err error) {
	pterm.Error.WithWriter(e.out).Printf("Error in %s: %v\n", stage, err)
}

// EmitInfo prints informational message
func (e *CLIEmitter) EmitInfo(message string) {
	if e.verbosity >= 1 {
		pterm.Info.WithWriter(e.out).Println(message)
	}
}

// JSONEmitter writes one JSON event per line.
type JSONEmitter struct {
	encoder *json.Encoder
	now     func() time.Time
}

// NewJSONEmitterTo creates a JSON progress emitter on w
func NewJSONEmitterTo(w io.Writer) *JSONEmitter {
	return &JSONEmitter{encoder: json.NewEncoder(w), now: time.Now}
}

func (e *JSONEmitter) emit(eventType string, data map[string]interface{}) {
	e.encoder.Encode(ProgressEvent{Type: eventType, Timestamp: e.now(), Data: data})
}

// EmitStage emits a stage event as JSON
func (e *JSONEmitter) EmitStage(stage string, message string) {
	e.emit("stage", map[string]interface{}{"stage": stage, "message": message})
}

// EmitProgress emits a progress event as JSON
func (e *JSONEmitter) EmitProgress(count int, metadata map[string]interface{}) {
	data := map[string]interface{}{"count": count}
	for k, v := range metadata {
		data[k] = v
	}
	e.emit("progress", data)
}

// EmitComplete emits a completion event as JSON
func (e *JSONEmitter) EmitComplete(summary map[string]interface{}) {
	e.emit("complete", summary)
}

// EmitError emits an error event as JSON
func (e *JSONEmitter) EmitError(stage string, err error) {
	e.emit("error", map[string]interface{}{"stage": stage, "error": err.Error()})
}

// EmitInfo emits an info event as JSON
func (e *JSONEmitter) EmitInfo(message string) {
	e.emit("info", map[string]interface{}{"message": message})
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
