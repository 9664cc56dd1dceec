package model

// Line groups the routes sharing one public short name.
type Line struct {
	ID         uint `gorm:"primaryKey"`
	ScenarioID uint `gorm:"index"`

	Name string
}
