package storage

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound indicates the requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness constraint rejected the write
	ErrConflict = errors.New("conflict")

	// ErrRunLocked indicates another orchestration task holds the run
	ErrRunLocked = errors.New("run is locked by another task")

	// ErrRunActive indicates the run cannot be deleted while running
	ErrRunActive = errors.New("run is running")
)

// ValidationError reports bad input shape on a create or update.
type ValidationError struct {
	Entity  string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s field '%s': %s", e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("validation error on %s: %s", e.Entity, e.Message)
}

// NotFoundError carries the entity and id of a missing row. It matches
// ErrNotFound with errors.Is.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is implements error matching.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// classifyConstraint translates sqlite constraint failures into the
// store's error taxonomy. Other errors are returned unchanged.
func classifyConstraint(entity string, err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%s: %w: %s", entity, ErrConflict, se.Error())
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return &ValidationError{Entity: entity, Message: "referenced row does not exist"}
	case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return &ValidationError{Entity: entity, Message: se.Error()}
	case sqlite3.SQLITE_CONSTRAINT_TRIGGER:
		return fmt.Errorf("%s: %w", entity, ErrRunActive)
	}
	return err
}
