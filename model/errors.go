package model

import (
	"errors"
	"fmt"
)

// ErrModelNotFound indicates the artifact file does not exist at the
// configured path.
var ErrModelNotFound = errors.New("model artifact not found")

// LoadError indicates an artifact that exists but could not be turned into a
// usable record: malformed payload, unrecognized schema version or a fitted
// state that cannot forecast.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load model %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load model %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadErr(path, reason string, err error) *LoadError {
	return &LoadError{Path: path, Reason: reason, Err: err}
}
