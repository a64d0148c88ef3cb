package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedCatalog is returned when a document does not have the
	// {"version": <string>, "templates": [<object>...]} shape.
	ErrMalformedCatalog = errors.New("malformed catalog")

	// ErrNoCatalogs is returned by Merge and Concat when called without input.
	ErrNoCatalogs = errors.New("no catalogs to merge")
)

// VersionMismatchError reports catalogs published for different template
// format versions. It aborts a merge.
type VersionMismatchError struct {
	Expected string
	Actual   string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("templates are not for the same version, can't merge v%s and v%s", e.Expected, e.Actual)
}

// WriteError reports a failure to write a catalog to its destination.
type WriteError struct {
	Destination string
	Err         error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %q: %v", e.Destination, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
