package reference

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvableCitation is reported when a citation yields no section ids.
	ErrUnresolvableCitation = errors.New("reference: citation has no section ids")

	// ErrUnmatchedSection is reported when a section id has no law record.
	ErrUnmatchedSection = errors.New("reference: section not found in law records")
)

// Diagnostic describes one resolution problem for a citation. It wraps one
// of the package sentinel errors, so callers can use errors.Is on it.
type Diagnostic struct {
	Kind     error  `json:"-"`
	Section  string `json:"section,omitempty"`
	Citation string `json:"citation"`
}

func (d Diagnostic) Error() string {
	if d.Section != "" {
		return fmt.Sprintf("%v: section %q in %q", d.Kind, d.Section, d.Citation)
	}
	return fmt.Sprintf("%v: %q", d.Kind, d.Citation)
}

func (d Diagnostic) Unwrap() error { return d.Kind }

// MarshalText renders the diagnostic as its message, which keeps it
// readable inside JSON output.
func (d Diagnostic) MarshalText() ([]byte, error) {
	return []byte(d.Error()), nil
}
