package models

import (
	"errors"
	"fmt"
)

// Existence errors. Callers distinguish "missing" from "immutable" via
// errors.Is against these sentinels.
var (
	ErrProviderNotExists       = errors.New("data provider does not exist")
	ErrRecordNotExists         = errors.New("record does not exist")
	ErrRepresentationNotExists = errors.New("representation does not exist")
	ErrVersionNotExists        = errors.New("representation version does not exist")
	ErrFileNotExists           = errors.New("file does not exist")
	ErrDataSetNotExists        = errors.New("data set does not exist")
)

// Conflict errors.
var (
	ErrProviderAlreadyExists = errors.New("data provider already exists")
	ErrDataSetAlreadyExists  = errors.New("data set already exists")
	ErrFileAlreadyExists     = errors.New("file already exists")
)

// State errors.
var (
	// ErrCannotModifyPersistentRepresentation is returned when content of a
	// persistent version is added, replaced or removed, or when a persistent
	// version is persisted again or deleted by version.
	ErrCannotModifyPersistentRepresentation = errors.New("cannot modify persistent representation version")

	// ErrCannotPersistEmptyRepresentation is returned when a version with no
	// files is persisted.
	ErrCannotPersistEmptyRepresentation = errors.New("cannot persist representation version with no files")

	// ErrProviderInUse is returned when a provider owning data sets or
	// representation versions is deleted.
	ErrProviderInUse = errors.New("data provider still owns data sets or representations")

	// ErrWrongContentRange is returned when a requested byte range does not
	// fit the stored content length.
	ErrWrongContentRange = errors.New("requested content range is not satisfiable")

	// ErrContentHashMismatch is returned when uploaded content does not match
	// the checksum declared by the caller.
	ErrContentHashMismatch = errors.New("content hash mismatch")
)

// StorageError wraps a backend I/O failure so it can be told apart from
// validation failures.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError. Returns nil for a nil err.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
