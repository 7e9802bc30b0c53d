package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrDatasetUnavailable means no dataset ID could be obtained; every
	// later request path depends on it.
	ErrDatasetUnavailable = errors.New("dataset unavailable")

	// ErrVehicleListUnavailable means the vehicle ID list could not be fetched.
	ErrVehicleListUnavailable = errors.New("vehicle list unavailable")

	// ErrSkipped is returned without a request for non-positive IDs.
	ErrSkipped = errors.New("skipped invalid id")

	// ErrDealerMismatch means the service answered with a different or
	// unnamed dealer than the one requested.
	ErrDealerMismatch = errors.New("dealer record mismatch")

	// ErrSubmissionFailed means the answer could not be posted or its
	// verdict could not be read.
	ErrSubmissionFailed = errors.New("submission failed")
)

// VehicleFetchError reports a vehicle that could not be fetched.
type VehicleFetchError struct {
	VehicleID VehicleID
	Err       error
}

// Error implements the error interface.
func (e *VehicleFetchError) Error() string {
	return fmt.Sprintf("fetch vehicle %d: %v", e.VehicleID, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *VehicleFetchError) Unwrap() error {
	return e.Err
}

// DealerFetchError reports a dealer that could not be fetched.
type DealerFetchError struct {
	DealerID DealerID
	Err      error
}

// Error implements the error interface.
func (e *DealerFetchError) Error() string {
	return fmt.Sprintf("fetch dealer %d: %v", e.DealerID, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DealerFetchError) Unwrap() error {
	return e.Err
}
