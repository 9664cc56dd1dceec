package model

// Rotation is the sequence of trips one vehicle performs on one concrete
// date. Trips are ordered by departure time and must not overlap.
type Rotation struct {
	ID         uint `gorm:"primaryKey"`
	ScenarioID uint `gorm:"index"`

	Name          string
	VehicleTypeID uint

	Trips []*Trip `gorm:"foreignKey:RotationID"`

	VehicleType *VehicleType `gorm:"-"`
}
