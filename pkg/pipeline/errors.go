package pipeline

import (
	"fmt"

	"github.com/Sternrassler/dealer-answer/pkg/dataset"
)

// Phase names a pipeline stage.
type Phase string

// Pipeline phases, as reported in PhaseError and metric labels.
const (
	PhaseDataset  Phase = "dataset"
	PhaseVehicles Phase = "vehicles"
	PhaseDealers  Phase = "dealers"
	PhaseAssemble Phase = "assemble"
	PhaseSubmit   Phase = "submit"
)

// PhaseError wraps a run-aborting error with the phase it occurred in.
type PhaseError struct {
	Phase Phase
	Err   error
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase: %v", e.Phase, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

// DealerResolutionError reports a distinct dealer whose name could not be
// resolved. It aborts the run before submission.
type DealerResolutionError struct {
	DealerID dataset.DealerID
	Err      error
}

// Error implements the error interface.
func (e *DealerResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dealer %d resolution failed: %v", e.DealerID, e.Err)
	}
	return fmt.Sprintf("dealer %d resolution failed", e.DealerID)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DealerResolutionError) Unwrap() error {
	return e.Err
}
