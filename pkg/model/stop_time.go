package model

import (
	"time"
)

// StopTime is one visit of a trip at a station. For the stop times of a
// trip ordered by position, ArrivalTime plus dwell never exceeds the next
// ArrivalTime, and arrival times are strictly increasing.
type StopTime struct {
	ID         uint `gorm:"primaryKey"`
	ScenarioID uint `gorm:"index"`

	TripID    uint `gorm:"index"`
	StationID uint

	Position    int
	ArrivalTime time.Time

	// DwellSeconds is how long the vehicle waits before departing.
	DwellSeconds int64

	Station *Station `gorm:"-"`
}

func (st *StopTime) Dwell() time.Duration {
	return time.Duration(st.DwellSeconds) * time.Second
}
