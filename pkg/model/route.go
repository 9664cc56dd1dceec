package model

// Route is an ordered sequence of stations with cumulative elapsed distance.
// The departure and arrival stations are the first and last RouteStation.
type Route struct {
	ID         uint `gorm:"primaryKey"`
	ScenarioID uint `gorm:"index"`

	LineID             uint
	DepartureStationID uint
	ArrivalStationID   uint

	Name      string
	NameShort string

	// Distance is the total route length in metres.
	Distance float64

	Stations []*RouteStation `gorm:"foreignKey:RouteID"`

	// Assembly-time references, resolved to the ID columns by the store
	// just before the insert.
	Line             *Line    `gorm:"-"`
	DepartureStation *Station `gorm:"-"`
	ArrivalStation   *Station `gorm:"-"`
}

type RouteStation struct {
	ID         uint `gorm:"primaryKey"`
	ScenarioID uint `gorm:"index"`

	RouteID   uint `gorm:"index"`
	StationID uint

	Position int

	// ElapsedDistance in metres from the route start; strictly increasing
	// along the route.
	ElapsedDistance float64

	Station *Station `gorm:"-"`
}
