package model

import (
	"time"
)

type TripCategory string

const (
	TripCategoryPassenger TripCategory = "PASSENGER"
	TripCategoryEmpty     TripCategory = "EMPTY"
)

type Trip struct {
	ID         uint `gorm:"primaryKey"`
	ScenarioID uint `gorm:"index"`

	RouteID    uint
	RotationID uint `gorm:"index"`

	DepartureTime time.Time
	ArrivalTime   time.Time

	Category TripCategory

	StopTimes []*StopTime `gorm:"foreignKey:TripID"`

	Route *Route `gorm:"-"`
}
