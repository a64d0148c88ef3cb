package source

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// SourceListError reports an unreadable source list.
type SourceListError struct {
	Path string
	Err  error
}

func (e *SourceListError) Error() string {
	return fmt.Sprintf("read source list %q: %v", e.Path, e.Err)
}

func (e *SourceListError) Unwrap() error {
	return e.Err
}

// FetchError reports a failure to retrieve or parse one source. It is
// recoverable: the source is dropped and the batch continues.
type FetchError struct {
	Source Ref
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// EmptyBatchError is returned when no source of a batch could be fetched.
type EmptyBatchError struct {
	Failures []*FetchError
}

func (e *EmptyBatchError) Error() string {
	if len(e.Failures) == 0 {
		return "no sources to fetch"
	}
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return fmt.Sprintf("no sources were fetched successfully: %v", utilerrors.NewAggregate(errs))
}
