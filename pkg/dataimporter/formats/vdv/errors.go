package vdv

import (
	"fmt"
	"strings"
)

// ParseError is fatal to a single table file: malformed header, unknown
// encoding, record/column mismatch or a file with zero records.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// SchemaError is fatal to the whole import and is reported before any
// assembly work begins.
type SchemaError struct {
	Missing   []TableName
	Duplicate []TableName
	Message   string
}

func (e *SchemaError) Error() string {
	var parts []string
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing tables: %s", joinTableNames(e.Missing)))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate tables: %s", joinTableNames(e.Duplicate)))
	}
	return strings.Join(parts, "; ")
}

func joinTableNames(names []TableName) string {
	strs := make([]string, len(names))
	for i, name := range names {
		strs[i] = string(name)
	}
	return strings.Join(strs, ", ")
}

// ReferenceError reports a composite key with no match, or relaxed-match
// candidates that disagree.
type ReferenceError struct {
	Key     string
	Record  string
	Message string
}

func (e *ReferenceError) Error() string {
	msg := fmt.Sprintf("%s: no match for %s", e.Message, e.Key)
	if e.Record != "" {
		msg += fmt.Sprintf(" (from %s)", e.Record)
	}
	return msg
}

// ConsistencyError indicates either bad input data or an assembler bug:
// non-increasing route distance, non-increasing stop times even after
// reconciliation, or conflicting vehicle types within one duty. Never
// silently coerced.
type ConsistencyError struct {
	Message string
}

func (e *ConsistencyError) Error() string {
	return e.Message
}

// CommitError wraps a backing-store failure; the whole import rolls back.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed: %v", e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
