package cmd

import (
	"errors"
	"fmt"

	"github.com/harrison/wavegate/internal/taxonomy"
)

// exitError pairs an error with the process exit code §6.1's table
// assigns it, letting main() translate a returned error into the right
// code without every RunE hand-rolling os.Exit calls (which would break
// cobra's own error printing).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// ExitCode extracts the intended process exit code from err, defaulting
// to 1 for any error that was not explicitly classified (spec §6.1's
// table gives every command a default failure code of at least 1).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// classifyOrchestrateErr maps orchestrate's two failure kinds to its two
// non-zero exit codes (spec §6.1: "1 parse/ingest error; 2 cycle").
func classifyOrchestrateErr(err error) error {
	if err == nil {
		return nil
	}
	if taxonomy.OfKind(err, taxonomy.CircularDependency) {
		return withExitCode(2, err)
	}
	return withExitCode(1, err)
}

// classifyExecuteErr maps execute's three failure kinds (spec §6.1: "1
// missing plan; 2 checkpoint failure; 3 timeout").
func classifyExecuteErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case taxonomy.OfKind(err, taxonomy.WaveTimeout):
		return withExitCode(3, err)
	case taxonomy.OfKind(err, taxonomy.PlanCorrupted):
		return withExitCode(1, err)
	case taxonomy.OfKind(err, taxonomy.IncompleteWave),
		taxonomy.OfKind(err, taxonomy.ConstitutionViolation),
		taxonomy.OfKind(err, taxonomy.CheckpointCommitFailed),
		taxonomy.OfKind(err, taxonomy.ConstitutionMissing):
		return withExitCode(2, err)
	default:
		return withExitCode(1, err)
	}
}

// classifyCheckpointErr maps checkpoint's two failure kinds (spec §6.1:
// "1 validation failure; 2 commit failure").
func classifyCheckpointErr(err error) error {
	if err == nil {
		return nil
	}
	if taxonomy.OfKind(err, taxonomy.CheckpointCommitFailed) {
		return withExitCode(2, err)
	}
	return withExitCode(1, err)
}

// classifyConstitutionErr maps constitution's two failure kinds (spec
// §6.1: "1 missing; 2 quality below threshold").
func classifyConstitutionErr(err error, belowThreshold bool) error {
	if err != nil {
		return withExitCode(1, err)
	}
	if belowThreshold {
		return withExitCode(2, fmt.Errorf("rule document quality score is below the configured threshold"))
	}
	return nil
}
