package db

import (
	"bufio"
	"context"
	"database/sql"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/teranos/catalogix/errors"
)

// SupportedSchema is the range of artifact schema versions the embedded
// migrations can load.
const SupportedSchema = "~3.3"

const schemaVersionPrefix = "-- schema_version: "

// Report summarizes a verification run.
type Report struct {
	SchemaVersion string `json:"schema_version,omitempty"`
	Empty         bool   `json:"empty"` // placeholder artifacts, nothing to apply
	Upserts       int    `json:"upserts"`
	Updates       int    `json:"updates"`
	Rows          int    `json:"rows"`
	WithCover     int    `json:"with_cover"`
}

// SchemaVersionOf reads the schema version from a script's header.
func SchemaVersionOf(script string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(script))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "--") {
			break
		}
		if v, ok := strings.CutPrefix(line, schemaVersionPrefix); ok {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// CheckSchemaVersion fails unless version satisfies SupportedSchema.
func CheckSchemaVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(errors.Mark(err, errors.ErrIncompatibleSchema), "unreadable schema version %q", version)
	}
	c, err := semver.NewConstraint(SupportedSchema)
	if err != nil {
		return errors.Wrap(err, "invalid supported schema constraint")
	}
	if !c.Check(v) {
		err := errors.Wrapf(errors.ErrIncompatibleSchema, "artifacts target schema %s, this build loads %s", v, SupportedSchema)
		return errors.WithHint(err, "regenerate the artifacts with a matching catalogix version")
	}
	return nil
}

// Verify applies an upsert script and an optional update script to db, which
// must already carry the models schema, and counts the result.
func Verify(ctx context.Context, db *sql.DB, upsert, update string, logger *zap.SugaredLogger) (Report, error) {
	var report Report

	version, ok := SchemaVersionOf(upsert)
	if !ok {
		upserts, err := SplitStatements(upsert)
		if err != nil {
			return report, errors.Wrap(err, "upsert script")
		}
		updates, err := SplitStatements(update)
		if err != nil {
			return report, errors.Wrap(err, "update script")
		}
		if len(upserts) == 0 && len(updates) == 0 {
			report.Empty = true
			return report, nil
		}
		return report, errors.WithHint(
			errors.Wrap(errors.ErrIncompatibleSchema, "upsert script has no schema_version header"),
			"only scripts written by catalogix ix can be verified")
	}
	if err := CheckSchemaVersion(version); err != nil {
		return report, err
	}
	report.SchemaVersion = version

	n, err := ApplyScript(ctx, db, upsert)
	if err != nil {
		return report, errors.Wrap(err, "upsert script")
	}
	report.Upserts = n

	n, err = ApplyScript(ctx, db, update)
	if err != nil {
		return report, errors.Wrap(err, "update script")
	}
	report.Updates = n

	row := db.QueryRowContext(ctx, "SELECT COUNT(*), COUNT(cover_image_url) FROM models")
	if err := row.Scan(&report.Rows, &report.WithCover); err != nil {
		return report, errors.Wrap(err, "count models")
	}

	if logger != nil {
		logger.Debugw("Artifacts verified",
			"schema_version", report.SchemaVersion,
			"upserts", report.Upserts,
			"updates", report.Updates,
			"rows", report.Rows,
			"with_cover", report.WithCover)
	}
	return report, nil
}
