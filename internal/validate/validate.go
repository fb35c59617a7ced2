// internal/validate/validate.go
package validate

import (
	"context"

	"guardian/internal/diff"
)

// Severity grades a validation issue. Error and above block snapshot
// creation.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Blocking reports whether the severity prevents a snapshot.
func (s Severity) Blocking() bool {
	return s >= Error
}

// Issue is a single finding from a validator. Fix, when non-nil, can repair
// the issue in place.
type Issue struct {
	Severity Severity     `json:"severity"`
	Path     string       `json:"path,omitempty"`
	Message  string       `json:"message"`
	Fix      func() error `json:"-"`
}

// Validator is the external gate consulted before a snapshot moves HEAD.
type Validator interface {
	// ValidateProject inspects the whole working tree.
	ValidateProject(ctx context.Context) ([]Issue, error)

	// ValidatePendingChanges inspects the change set a snapshot is about
	// to record.
	ValidatePendingChanges(ctx context.Context, changes []diff.FileChange) ([]Issue, error)
}

// HasBlocking reports whether any issue carries a blocking severity.
func HasBlocking(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity.Blocking() {
			return true
		}
	}
	return false
}
