package odm

import (
	"errors"
	"fmt"

	"github.com/alfredjeanlab/odm/internal/model"
	"github.com/alfredjeanlab/odm/internal/store"
)

// ErrNotFound is returned when a document or reference target is not stored.
var ErrNotFound = store.ErrNotFound

// ErrMalformedJSON is returned when a document body is not valid extended JSON.
var ErrMalformedJSON = errors.New("malformed extended JSON document")

// DereferenceError reports a reference that could not be resolved.
type DereferenceError struct {
	Ref model.Ref
	Err error
}

func (e *DereferenceError) Error() string {
	return fmt.Sprintf("dereference %s: %v", e.Ref, e.Err)
}

func (e *DereferenceError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means the requested record is absent,
// either directly or through a failed dereference.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
