package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
const (
	VerbosityUser  = 0 // No flags: summary, warnings and errors
	VerbosityInfo  = 1 // -v: + per-run progress and storage decisions
	VerbosityDebug = 2 // -vv: + per-record diagnostics
)

// VerbosityToLevel maps verbosity flags (-v, -vv, etc.) to zap log levels
//
//	0 (none)  -> WarnLevel
//	1 (-v)    -> InfoLevel
//	2+ (-vv)  -> DebugLevel
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// ShouldLogRecords returns true for verbosity >= 2 (-vv), where each record's
// diagnostic trail is echoed to the log as well as the artifact comments.
func ShouldLogRecords(verbosity int) bool {
	return verbosity >= VerbosityDebug
}
