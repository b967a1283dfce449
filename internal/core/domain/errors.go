package domain

import "errors"

// Storage-level errors, returned by backends and mapped to return values at
// the record store boundary.
var ErrDocumentNotFound = errors.New("document not found")
var ErrVersionConflict = errors.New("document version conflict")
var ErrSaveFailed = errors.New("could not save changes")

// Domain errors.
var ErrOwnerProtected = errors.New("the owner cannot be removed")
var ErrAccessDenied = errors.New("access denied")
