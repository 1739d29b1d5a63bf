package core

import (
	"errors"
	"fmt"
)

// NotFoundError reports that a referenced card does not exist in the
// catalog. It is surfaced to the caller and never retried.
type NotFoundError struct {
	Kind string // "card" or "combo"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// UpstreamError reports that an external collaborator (retrieval, catalog,
// or text generation) failed. It carries enough context to say which
// collaborator failed and for what input.
type UpstreamError struct {
	Service string // "retrieval", "catalog", "generation"
	Input   string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("%s failed for %q: %v", e.Service, e.Input, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
