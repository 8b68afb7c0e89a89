package apperr

import (
	"laundry-service/backend/internal/db"
)

type storageMapping struct {
	kind    Kind
	message string
	fields  bool
}

// storageKinds maps each storage violation to the error kind the client sees.
var storageKinds = map[db.Violation]storageMapping{
	db.ViolationUnique:      {KindConflict, "Resource already exists", true},
	db.ViolationForeignKey:  {KindConflict, "Referenced resource does not exist", true},
	db.ViolationNotNull:     {KindValidation, "Missing required field", true},
	db.ViolationCheck:       {KindValidation, "Invalid field value", true},
	db.ViolationNotFound:    {KindNotFound, "Resource not found", false},
	db.ViolationTimeout:     {KindUnavailable, "Storage timed out", false},
	db.ViolationUnavailable: {KindUnavailable, "Storage unavailable", false},
}

// FromStorage classifies a storage error and returns the matching *Error. Errors that
// are already typed pass through; nil stays nil; anything unclassified is Internal.
func FromStorage(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	v, fields := db.Classify(err)
	m, ok := storageKinds[v]
	if !ok {
		return Internal("Internal server error", err)
	}
	e := newError(m.kind, m.message, nil)
	if m.fields {
		e.Fields = fields
	}
	e.Err = err
	return e
}
