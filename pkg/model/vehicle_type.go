package model

type VehicleType struct {
	ID         uint `gorm:"primaryKey"`
	ScenarioID uint `gorm:"index"`

	Name      string
	NameShort string

	// Length in metres, consumption in Wh/km. Zero when the source did not
	// provide them.
	Length      float64
	Consumption float64

	// Placeholder is set on the synthesized type used for duties that carry
	// no vehicle type reference.
	Placeholder bool
}
