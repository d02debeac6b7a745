package sqlite

import (
	"errors"
	"strings"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/warbler/internal/apperror"
)

// mapError translates SQLite constraint failures into apperror.Integrity.
// Everything else is returned unchanged.
//
// modernc reports extended result codes (e.g. SQLITE_CONSTRAINT_UNIQUE),
// so the specific constraint can be named. The message match at the end
// covers errors that reach us already flattened to text.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return apperror.Integrity("unique", err)
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return apperror.Integrity("not null", err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return apperror.Integrity("foreign key", err)
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return apperror.Integrity("check", err)
		}
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return apperror.Integrity("constraint", err)
		}
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return apperror.Integrity("unique", err)
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return apperror.Integrity("not null", err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return apperror.Integrity("foreign key", err)
	case strings.Contains(msg, "CHECK constraint failed"):
		return apperror.Integrity("check", err)
	}
	return err
}
