package vdv

import (
	"fmt"
	"sort"
	"time"

	"github.com/mpm-tu-berlin/eflips-ingest/pkg/model"
)

// ReconcileRotations repairs every trip of every rotation, resyncs the trip
// boundary times to the repaired stop times, orders each rotation's trips by
// departure and rejects overlapping time windows within one duty.
func ReconcileRotations(rotations []*model.Rotation) error {
	for _, rotation := range rotations {
		for _, trip := range rotation.Trips {
			if err := ReconcileStopTimes(trip.StopTimes); err != nil {
				return err
			}
			trip.DepartureTime = trip.StopTimes[0].ArrivalTime
			trip.ArrivalTime = trip.StopTimes[len(trip.StopTimes)-1].ArrivalTime
		}

		sort.Slice(rotation.Trips, func(i, j int) bool {
			return rotation.Trips[i].DepartureTime.Before(rotation.Trips[j].DepartureTime)
		})

		for i := 1; i < len(rotation.Trips); i++ {
			previous := rotation.Trips[i-1]
			current := rotation.Trips[i]
			if current.DepartureTime.Before(previous.ArrivalTime) {
				return &ConsistencyError{
					Message: fmt.Sprintf(
						"%s: trip departing %s overlaps the previous trip arriving %s",
						rotation.Name,
						current.DepartureTime.Format(time.RFC3339),
						previous.ArrivalTime.Format(time.RFC3339)),
				}
			}
		}
	}
	return nil
}

// ReconcileStopTimes repairs runs of stop times sharing one timestamp so
// arrival order becomes strictly increasing. Timing tables frequently round
// short hops down to zero seconds, which would otherwise produce several
// stops at the identical instant.
//
// A run containing the last stop but not the first shifts its earlier
// members backward, preserving the final arrival. Every other run keeps its
// earliest member and shifts the later ones forward by one second each.
func ReconcileStopTimes(stopTimes []*model.StopTime) error {
	n := len(stopTimes)

	i := 0
	for i < n {
		j := i
		for j+1 < n && stopTimes[j+1].ArrivalTime.Equal(stopTimes[i].ArrivalTime) {
			j++
		}

		if j > i {
			includesFirst := i == 0
			includesLast := j == n-1

			if includesLast && !includesFirst {
				for k := i; k < j; k++ {
					stopTimes[k].ArrivalTime = stopTimes[k].ArrivalTime.Add(-time.Duration(j-k) * time.Second)
				}
			} else {
				for k := i + 1; k <= j; k++ {
					stopTimes[k].ArrivalTime = stopTimes[k].ArrivalTime.Add(time.Duration(k-i) * time.Second)
				}
			}
		}

		i = j + 1
	}

	for k := 1; k < n; k++ {
		previous := stopTimes[k-1]
		current := stopTimes[k]

		if !current.ArrivalTime.After(previous.ArrivalTime) {
			return &ConsistencyError{
				Message: fmt.Sprintf(
					"stop times not strictly increasing after reconciliation: position %d at %s, position %d at %s",
					previous.Position, previous.ArrivalTime.Format(time.RFC3339),
					current.Position, current.ArrivalTime.Format(time.RFC3339)),
			}
		}

		// A shifted stop must still depart before the next one arrives.
		if departure := previous.ArrivalTime.Add(previous.Dwell()); departure.After(current.ArrivalTime) {
			return &ConsistencyError{
				Message: fmt.Sprintf(
					"stop at position %d departs %s after the next stop arrives %s",
					previous.Position, departure.Format(time.RFC3339),
					current.ArrivalTime.Format(time.RFC3339)),
			}
		}
	}
	return nil
}
