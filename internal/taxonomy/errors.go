// Package taxonomy defines the closed error-kind vocabulary shared across
// wavegate's components (spec §4.10, §7). Every fallible operation in the
// core returns either nil or a *CoreError wrapping one of these kinds, so
// callers can branch on Kind without parsing message text.
package taxonomy

import "fmt"

// Kind names one of the core's closed set of error categories.
type Kind string

const (
	InvalidTaskListFormat  Kind = "InvalidTaskListFormat"
	CircularDependency     Kind = "CircularDependency"
	UnknownPredecessor     Kind = "UnknownPredecessor"
	PlanCorrupted          Kind = "PlanCorrupted"
	ConcurrentPlanWrite    Kind = "ConcurrentPlanWrite"
	ConstitutionMissing    Kind = "ConstitutionMissing"
	ConstitutionViolation  Kind = "ConstitutionViolation"
	IncompleteWave         Kind = "IncompleteWave"
	WaveTimeout            Kind = "WaveTimeout"
	CheckpointCommitFailed Kind = "CheckpointCommitFailed"
	RegistryCorrupted      Kind = "RegistryCorrupted"
	AlreadyRegistered      Kind = "AlreadyRegistered"
	NoSuchTask             Kind = "NoSuchTask"
	LockTimeout            Kind = "LockTimeout"
)

// CoreError is the single error type surfaced by THE CORE. It carries a
// closed Kind, a one-line Summary, an optional indented Remediation block,
// and an optional wrapped cause for errors.Unwrap.
type CoreError struct {
	Kind        Kind
	Summary     string
	Remediation string
	Cause       error
}

func (e *CoreError) Error() string {
	if e.Remediation == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Summary)
	}
	return fmt.Sprintf("%s: %s\n    %s", e.Kind, e.Summary, e.Remediation)
}

func (e *CoreError) Unwrap() error { return e.Cause }

// Is reports whether target is a *CoreError with the same Kind, so callers
// can do errors.Is(err, taxonomy.New(taxonomy.WaveTimeout, "")).
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a CoreError with no remediation and no wrapped cause.
func New(kind Kind, summary string) *CoreError {
	return &CoreError{Kind: kind, Summary: summary}
}

// Newf builds a CoreError with a formatted summary.
func Newf(kind Kind, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Summary: fmt.Sprintf(format, args...)}
}

// WithRemediation returns a copy of e with the given remediation block set.
func (e *CoreError) WithRemediation(remediation string) *CoreError {
	cp := *e
	cp.Remediation = remediation
	return &cp
}

// WithCause returns a copy of e wrapping cause.
func (e *CoreError) WithCause(cause error) *CoreError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// OfKind reports whether err is a *CoreError of the given kind.
func OfKind(err error, kind Kind) bool {
	ce, ok := err.(*CoreError)
	if !ok {
		return false
	}
	return ce.Kind == kind
}
