// Package repository holds the durable stores behind the allocation core:
// beds and rooms, booking records and admin users.  Each store comes in a SQL
// flavour over database.DB and, where the core needs one for tests or a
// single-process deployment, an in-memory flavour with the same contract.
//
// The sentinel errors below are shared by every store so higher layers can
// tell failure scenarios apart with errors.Is.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation it is not
// allowed to perform.  Handlers translate it into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be applied because the record
// is not in the state the caller expected, e.g. reserving a bed that is no
// longer free.  Handlers translate it into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when a referenced room, bed, booking or user does
// not exist.
var ErrNotFound = errors.New("not found")
