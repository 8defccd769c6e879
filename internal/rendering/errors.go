// Package rendering renders the self-contained HTML deep dive report.
package rendering

import (
	"errors"
	"fmt"
)

// ErrNoReport is returned when there is no strategy report to render.
var ErrNoReport = errors.New("rendering: report is required")

// ReportError wraps a failure to parse or execute the report template.
type ReportError struct {
	Phase string // "parse" or "execute"
	Cause error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("rendering: %s report template: %v", e.Phase, e.Cause)
}

func (e *ReportError) Unwrap() error {
	return e.Cause
}
