package db

import (
	"bufio"
	"context"
	"database/sql"
	"strings"

	"github.com/teranos/catalogix/errors"
)

// Statement is one executable statement of a script.
type Statement struct {
	Line int // 1-based line the statement starts on
	SQL  string
}

// MaxLineBytes is the longest script line SplitStatements accepts.
const MaxLineBytes = 16 * 1024 * 1024

// SplitStatements splits a generated script line-wise, the way the
// downstream loader does. "--" lines and /* ... */ blocks are skipped; a
// statement ends at a line ending in ";". A line longer than MaxLineBytes is
// an error rather than a silently shortened script.
func SplitStatements(script string) ([]Statement, error) {
	var (
		out       []Statement
		current   []string
		startLine int
		inComment bool
	)

	scanner := bufio.NewScanner(strings.NewReader(script))
	scanner.Buffer(make([]byte, 64*1024), MaxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if inComment {
			if strings.Contains(line, "*/") {
				inComment = false
			}
			continue
		}
		if len(current) == 0 {
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			if strings.HasPrefix(line, "/*") {
				inComment = !strings.Contains(line[2:], "*/")
				continue
			}
			startLine = lineNo
		}

		current = append(current, line)
		if strings.HasSuffix(line, ";") {
			out = append(out, Statement{Line: startLine, SQL: strings.Join(current, "\n")})
			current = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to split script at line %d", lineNo+1)
	}
	if len(current) > 0 {
		out = append(out, Statement{Line: startLine, SQL: strings.Join(current, "\n")})
	}
	return out, nil
}

// ApplyScript executes every statement of script in one transaction and
// returns how many ran. The first failure rolls everything back.
func ApplyScript(ctx context.Context, db *sql.DB, script string) (int, error) {
	statements, err := SplitStatements(script)
	if err != nil {
		return 0, err
	}
	if len(statements) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin script transaction")
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt.SQL); err != nil {
			tx.Rollback()
			serr := &StatementError{Line: stmt.Line, SQL: stmt.SQL, Err: err}
			return i, errors.WithDetailf(errors.Mark(serr, ErrStatementFailed), "statement: %s", preview(stmt.SQL))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit script transaction")
	}
	return len(statements), nil
}
