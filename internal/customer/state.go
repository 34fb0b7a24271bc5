package customer

import "fmt"

// State is the verification state of an onboarding attempt. Capture stages
// are strictly ordered; a stage may be re-run (overwriting its own
// evidence) but never skipped.
type State string

const (
	// StateCreated: identity fields submitted, no evidence captured yet.
	StateCreated State = "created"
	// StatePrimaryDocCaptured: primary document embedding stored and the
	// duplicate search returned a clean result.
	StatePrimaryDocCaptured State = "primary_doc_captured"
	// StateSecondaryDocCaptured: secondary document embedding stored.
	StateSecondaryDocCaptured State = "secondary_doc_captured"
	// StateLivenessCompleted: terminal success, live capture accepted.
	StateLivenessCompleted State = "liveness_completed"
	// StateRejected: terminal for this attempt (duplicate, fraud signal,
	// or failed liveness cross-match).
	StateRejected State = "rejected"
)

// ErrStagePrecondition is returned when a capture stage is invoked out of
// order, e.g. the liveness stage before the secondary document exists.
type ErrStagePrecondition struct {
	Stage    string
	Current  State
	Required State
}

func (e *ErrStagePrecondition) Error() string {
	return fmt.Sprintf("stage %s requires state %s, record is in %s", e.Stage, e.Required, e.Current)
}

// CanSubmitPrimaryDocument reports whether the primary document stage may
// run. Re-running the stage from its own state is allowed (idempotent
// overwrite); once the secondary document is captured the primary stage is
// locked in.
func (c *Customer) CanSubmitPrimaryDocument() error {
	switch c.State {
	case StateCreated, StatePrimaryDocCaptured:
		return nil
	default:
		return &ErrStagePrecondition{Stage: "primary_document", Current: c.State, Required: StateCreated}
	}
}

// CanSubmitSecondaryDocument reports whether the secondary document stage
// may run.
func (c *Customer) CanSubmitSecondaryDocument() error {
	switch c.State {
	case StatePrimaryDocCaptured, StateSecondaryDocCaptured:
		return nil
	default:
		return &ErrStagePrecondition{Stage: "secondary_document", Current: c.State, Required: StatePrimaryDocCaptured}
	}
}

// CanSubmitLiveness reports whether the liveness stage may run. A failed
// liveness attempt leaves the record in StateSecondaryDocCaptured, so the
// stage is retryable until it succeeds. An accepted capture is terminal:
// re-running it could downgrade a completed verification.
func (c *Customer) CanSubmitLiveness() error {
	switch c.State {
	case StateSecondaryDocCaptured:
		return nil
	default:
		return &ErrStagePrecondition{Stage: "liveness", Current: c.State, Required: StateSecondaryDocCaptured}
	}
}
