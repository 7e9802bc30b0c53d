package pipeline

import (
	"sort"
	"sync"

	"github.com/Sternrassler/dealer-answer/pkg/dataset"
)

// Aggregator groups fetched vehicles by dealer. It is safe for concurrent
// use; Add is atomic as a whole.
type Aggregator struct {
	mu               sync.Mutex
	vehiclesByDealer map[dataset.DealerID][]dataset.Vehicle
	distinct         map[dataset.DealerID]struct{}
	ignored          int
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		vehiclesByDealer: make(map[dataset.DealerID][]dataset.Vehicle),
		distinct:         make(map[dataset.DealerID]struct{}),
	}
}

// Add records one fetched vehicle under its dealer. Records whose dealer
// ID is not positive are ignored and Add reports false.
func (a *Aggregator) Add(record dataset.VehicleRecord) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !record.DealerID.Valid() {
		a.ignored++
		return false
	}

	a.distinct[record.DealerID] = struct{}{}
	a.vehiclesByDealer[record.DealerID] = append(a.vehiclesByDealer[record.DealerID], record.Vehicle())
	return true
}

// DealerIDs returns the distinct dealer IDs in ascending order.
func (a *Aggregator) DealerIDs() []dataset.DealerID {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]dataset.DealerID, 0, len(a.distinct))
	for id := range a.distinct {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// VehiclesByDealer returns a deep copy of the grouping.
func (a *Aggregator) VehiclesByDealer() map[dataset.DealerID][]dataset.Vehicle {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[dataset.DealerID][]dataset.Vehicle, len(a.vehiclesByDealer))
	for id, vehicles := range a.vehiclesByDealer {
		out[id] = append([]dataset.Vehicle(nil), vehicles...)
	}
	return out
}

// VehicleCount returns the number of grouped vehicles.
func (a *Aggregator) VehicleCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, vehicles := range a.vehiclesByDealer {
		n += len(vehicles)
	}
	return n
}

// Ignored returns how many records were dropped for lacking a valid dealer.
func (a *Aggregator) Ignored() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ignored
}
