// Package errors provides error handling for catalogix.
//
// This package re-exports github.com/cockroachdb/errors so every package wraps
// errors the same way and user-fixable failures can carry hints:
//
//	if err := os.MkdirAll(dir, 0o755); err != nil {
//	    return errors.Wrapf(err, "failed to create %s", dir)
//	}
//
//	return errors.WithHint(err, "set R2_BUCKET or pass --storage local")
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Shared sentinels. Wrap them to add context; match with errors.Is.
var (
	// ErrNotConfigured marks an optional collaborator (object storage, remote input) that has no configuration
	ErrNotConfigured = New("not configured")

	// ErrInvalidConfig indicates the resolved configuration failed validation
	ErrInvalidConfig = New("invalid configuration")

	// ErrIncompatibleSchema indicates an artifact was generated for a schema this build cannot apply
	ErrIncompatibleSchema = New("incompatible schema version")
)

// IsNotConfigured reports whether err is or wraps ErrNotConfigured.
func IsNotConfigured(err error) bool {
	return err != nil && Is(err, ErrNotConfigured)
}

// UserMessage renders err followed by any hints, one per line. Used by main
// before exiting non-zero.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if hint := FlattenHints(err); hint != "" {
		msg += "\nhint: " + hint
	}
	return msg
}
