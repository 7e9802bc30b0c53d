// Package dataset defines the records of the dealer scoring service and the
// typed operations that fetch and submit them.
package dataset

// VehicleID identifies a vehicle within a dataset.
type VehicleID int

// Valid reports whether id can be fetched. Non-positive IDs are skipped.
func (id VehicleID) Valid() bool { return id > 0 }

// DealerID identifies a dealer within a dataset.
type DealerID int

// Valid reports whether id can be fetched. Non-positive IDs are skipped.
func (id DealerID) Valid() bool { return id > 0 }

// VehicleRecord is a vehicle as returned by the service.
type VehicleRecord struct {
	VehicleID VehicleID `json:"vehicleId"`
	Year      int       `json:"year"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	DealerID  DealerID  `json:"dealerId"`
}

// Vehicle returns the record without its dealer, the shape used in answers.
func (r VehicleRecord) Vehicle() Vehicle {
	return Vehicle{
		VehicleID: r.VehicleID,
		Year:      r.Year,
		Make:      r.Make,
		Model:     r.Model,
	}
}

// Vehicle is a vehicle grouped under its dealer in an Answer.
type Vehicle struct {
	VehicleID VehicleID `json:"vehicleId"`
	Year      int       `json:"year"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
}

// DealerRecord is a dealer as returned by the service.
type DealerRecord struct {
	DealerID DealerID `json:"dealerId"`
	Name     string   `json:"name"`
}

// DealerGroup is one dealer and the vehicles it owns.
type DealerGroup struct {
	DealerID DealerID  `json:"dealerId"`
	Name     string    `json:"name"`
	Vehicles []Vehicle `json:"vehicles"`
}

// Answer is the document submitted for scoring.
type Answer struct {
	Dealers []DealerGroup `json:"dealers"`
}

// VehicleCount returns the number of vehicles across all dealers.
func (a Answer) VehicleCount() int {
	n := 0
	for _, d := range a.Dealers {
		n += len(d.Vehicles)
	}
	return n
}

// SubmissionResult is the service's verdict on a submitted Answer.
type SubmissionResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	TotalMilliseconds int    `json:"totalMilliseconds"`
}

// datasetIDResponse is the body of GET /datasetId.
type datasetIDResponse struct {
	DatasetID string `json:"datasetId"`
}

// vehicleIDsResponse is the body of GET /{datasetId}/vehicles.
type vehicleIDsResponse struct {
	VehicleIDs []VehicleID `json:"vehicleIds"`
}
