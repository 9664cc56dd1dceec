package model

// ImportSet is the pending change-set of one import: everything assembled
// from a dataset, held in memory until it is committed as one unit of work.
type ImportSet struct {
	Scenario *Scenario

	VehicleTypes []*VehicleType
	Stations     []*Station
	Lines        []*Line
	Routes       []*Route
	Rotations    []*Rotation
}

// TripCount is mostly useful for logging and tests.
func (set *ImportSet) TripCount() int {
	count := 0
	for _, rotation := range set.Rotations {
		count += len(rotation.Trips)
	}
	return count
}
