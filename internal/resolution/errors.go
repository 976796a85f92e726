package resolution

import "fmt"

// ResolutionError is the single structured error kind the engine produces.
// It covers unknown conflict types (no catalogue entry), unrecognized
// strategy names at the API boundary, and missing framework references on
// the summary path. Recoverable ambiguity (ties, weak signals) never
// errors; it yields a resolution with reduced confidence instead.
type ResolutionError struct {
	Strategy string
	Reason   string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("conflict resolution failed (%s): %s", e.Strategy, e.Reason)
}
