package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRecordType is matched by every *UnknownTypeError via errors.Is.
var ErrUnknownRecordType = errors.New("unknown record type")

// UnknownTypeError is returned when a record type outside {pulp, extract} is requested.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown record type %q: use %q or %q", e.Type, RecordPulp, RecordExtract)
}

// Is lets errors.Is(err, ErrUnknownRecordType) match.
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownRecordType
}

// RejectionError reports input that cannot be ingested. It carries every
// violation found so the caller can fix the file and resubmit.
// The store is never mutated when a RejectionError is returned.
type RejectionError struct {
	Stage      IngestStage // Last stage reached before rejection
	Violations []string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("ingestion rejected after %s: %s", e.Stage, strings.Join(e.Violations, "; "))
}

func reject(stage IngestStage, violations ...string) *RejectionError {
	return &RejectionError{Stage: stage, Violations: violations}
}

// AsRejection extracts a *RejectionError from err.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
