package model

type Station struct {
	ID         uint `gorm:"primaryKey"`
	ScenarioID uint `gorm:"index"`

	Name      string
	NameShort string

	Latitude  float64
	Longitude float64
	Elevation float64

	// Synthesized marks stations that were not present in the source's
	// places-of-interest table and had to be created during route assembly.
	Synthesized bool
}
