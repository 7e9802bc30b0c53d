package dataset

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Sternrassler/dealer-answer/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Requester issues JSON requests against the service. *client.Client
// implements it.
type Requester interface {
	GetJSON(ctx context.Context, endpoint string, out any) error
	PostJSON(ctx context.Context, endpoint string, in, out any) error
}

var _ Requester = (*client.Client)(nil)

// Service exposes the scoring service's endpoints as typed operations.
type Service struct {
	requester Requester
	logger    zerolog.Logger
}

// NewService creates a Service on top of r.
func NewService(r Requester) *Service {
	return &Service{
		requester: r,
		logger:    log.With().Str("component", "dataset").Logger(),
	}
}

// ResolveDatasetID fetches a new dataset ID. Any failure, including an
// empty ID, is reported as ErrDatasetUnavailable.
func (s *Service) ResolveDatasetID(ctx context.Context) (string, error) {
	var body datasetIDResponse
	if err := s.requester.GetJSON(ctx, "/datasetId", &body); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDatasetUnavailable, err)
	}
	if body.DatasetID == "" {
		return "", fmt.Errorf("%w: empty datasetId in response", ErrDatasetUnavailable)
	}

	s.logger.Debug().Str("dataset_id", body.DatasetID).Msg("Dataset resolved")
	return body.DatasetID, nil
}

// ListVehicleIDs returns the dataset's valid vehicle IDs in service order.
// Non-positive IDs are dropped here and nowhere else.
func (s *Service) ListVehicleIDs(ctx context.Context, datasetID string) ([]VehicleID, error) {
	var body vehicleIDsResponse
	if err := s.requester.GetJSON(ctx, datasetPath(datasetID, "vehicles"), &body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVehicleListUnavailable, err)
	}

	ids := make([]VehicleID, 0, len(body.VehicleIDs))
	for _, id := range body.VehicleIDs {
		if !id.Valid() {
			s.logger.Debug().Int("vehicle_id", int(id)).Msg("Skipping invalid vehicle ID")
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// FetchVehicle fetches one vehicle. Non-positive IDs return ErrSkipped
// without a request; other failures are *VehicleFetchError.
func (s *Service) FetchVehicle(ctx context.Context, datasetID string, id VehicleID) (VehicleRecord, error) {
	if !id.Valid() {
		return VehicleRecord{}, &VehicleFetchError{VehicleID: id, Err: ErrSkipped}
	}

	var record VehicleRecord
	endpoint := datasetPath(datasetID, "vehicles", strconv.Itoa(int(id)))
	if err := s.requester.GetJSON(ctx, endpoint, &record); err != nil {
		return VehicleRecord{}, &VehicleFetchError{VehicleID: id, Err: err}
	}

	// The answer is keyed by the requested ID.
	record.VehicleID = id
	return record, nil
}

// FetchDealer fetches one dealer. Non-positive IDs return ErrSkipped
// without a request. A record for a different dealer or without a name
// fails with ErrDealerMismatch.
func (s *Service) FetchDealer(ctx context.Context, datasetID string, id DealerID) (DealerRecord, error) {
	if !id.Valid() {
		return DealerRecord{}, &DealerFetchError{DealerID: id, Err: ErrSkipped}
	}

	var record DealerRecord
	endpoint := datasetPath(datasetID, "dealers", strconv.Itoa(int(id)))
	if err := s.requester.GetJSON(ctx, endpoint, &record); err != nil {
		return DealerRecord{}, &DealerFetchError{DealerID: id, Err: err}
	}

	if record.DealerID != id {
		return DealerRecord{}, &DealerFetchError{
			DealerID: id,
			Err:      fmt.Errorf("%w: got dealer %d", ErrDealerMismatch, record.DealerID),
		}
	}
	if record.Name == "" {
		return DealerRecord{}, &DealerFetchError{
			DealerID: id,
			Err:      fmt.Errorf("%w: empty name", ErrDealerMismatch),
		}
	}

	return record, nil
}

// Submit posts answer for scoring. A verdict with Success=false is not an
// error; transport, status, and decode failures are ErrSubmissionFailed.
func (s *Service) Submit(ctx context.Context, datasetID string, answer Answer) (SubmissionResult, error) {
	if answer.Dealers == nil {
		answer.Dealers = []DealerGroup{}
	}

	var result SubmissionResult
	if err := s.requester.PostJSON(ctx, datasetPath(datasetID, "answer"), answer, &result); err != nil {
		return SubmissionResult{}, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	s.logger.Debug().
		Bool("success", result.Success).
		Int("total_ms", result.TotalMilliseconds).
		Msg("Answer submitted")
	return result, nil
}

// datasetPath joins the dataset ID with further path segments. Escaping is
// left to the client, which sets the unescaped URL path.
func datasetPath(datasetID string, segments ...string) string {
	p := "/" + datasetID
	for _, s := range segments {
		p += "/" + s
	}
	return p
}
