package db

import (
	"fmt"

	"github.com/teranos/catalogix/errors"
)

// ErrStatementFailed marks a script statement the database rejected.
var ErrStatementFailed = errors.New("statement failed")

// StatementError locates a rejected statement in its script.
type StatementError struct {
	Line int
	SQL  string
	Err  error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// preview shortens a statement for error output.
func preview(sql string) string {
	const max = 120
	if len(sql) <= max {
		return sql
	}
	return sql[:max] + "..."
}
