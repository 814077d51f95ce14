package fleet

import (
	"errors"
	"time"

	"github.com/langburd/ubuntu-multipass-deployment/internal/multipass"
)

// Phase is the last lifecycle phase an instance entered.
type Phase string

const (
	PhaseValidate   Phase = "validate"
	PhasePurge      Phase = "purge"
	PhaseSynthesize Phase = "synthesize"
	PhaseLaunch     Phase = "launch"
	PhaseDone       Phase = "done"
)

// Result is the outcome of provisioning one instance.
type Result struct {
	Instance string
	Phase    Phase
	Purge    multipass.DeleteOutcome
	Err      error
	Duration time.Duration
}

// OK reports whether the instance was launched.
func (r Result) OK() bool {
	return r.Err == nil
}

// Failed returns the results that did not succeed.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err joins the errors of all failed results, or returns nil.
func Err(results []Result) error {
	var errs []error
	for _, r := range Failed(results) {
		errs = append(errs, r.Err)
	}
	return errors.Join(errs...)
}
