package pipeline

import (
	"sort"

	"github.com/Sternrassler/dealer-answer/pkg/dataset"
)

// Assemble builds the answer for dealerIDs from resolved names and the
// vehicle grouping. Dealers are ordered by ID and vehicles by vehicle ID,
// so equal inputs always yield the same document. Every valid dealer ID
// must have a name; a missing one is reported as *DealerResolutionError.
func Assemble(dealerIDs []dataset.DealerID, names map[dataset.DealerID]string, vehiclesByDealer map[dataset.DealerID][]dataset.Vehicle) (dataset.Answer, error) {
	ids := make([]dataset.DealerID, 0, len(dealerIDs))
	for _, id := range dealerIDs {
		if id.Valid() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	dealers := make([]dataset.DealerGroup, 0, len(ids))
	for _, id := range ids {
		name, ok := names[id]
		if !ok {
			return dataset.Answer{}, &DealerResolutionError{DealerID: id}
		}

		vehicles := append([]dataset.Vehicle{}, vehiclesByDealer[id]...)
		sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].VehicleID < vehicles[j].VehicleID })

		dealers = append(dealers, dataset.DealerGroup{
			DealerID: id,
			Name:     name,
			Vehicles: vehicles,
		})
	}

	return dataset.Answer{Dealers: dealers}, nil
}
