package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchema matches any *SchemaError via errors.Is.
	ErrSchema = errors.New("schema error")
	// ErrFeatureMismatch matches any *FeatureMismatchError via errors.Is.
	ErrFeatureMismatch = errors.New("feature mismatch")
)

// SchemaError reports a malformed or misaligned raw payload. It is fatal for
// the payload: no table is produced.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return "schema error: " + e.Reason
	}
	return fmt.Sprintf("schema error: field %q: %s", e.Field, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// TemporalParseError reports a timestamp that could not be parsed. The
// normalizer converts it into a missing timestamp instead of failing.
type TemporalParseError struct {
	Value string
	Err   error
}

func (e *TemporalParseError) Error() string {
	return fmt.Sprintf("parse timestamp %q: %v", e.Value, e.Err)
}

func (e *TemporalParseError) Unwrap() error { return e.Err }

// FeatureMismatchError reports expected model features that are absent from
// the input. Missing preserves the model's declared feature order.
type FeatureMismatchError struct {
	Missing []string
}

func (e *FeatureMismatchError) Error() string {
	return "feature mismatch: missing " + strings.Join(e.Missing, ", ")
}

func (e *FeatureMismatchError) Is(target error) bool { return target == ErrFeatureMismatch }
