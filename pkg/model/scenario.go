package model

import (
	"time"
)

// Scenario is one import run. Every other entity belongs to exactly one
// Scenario and becomes visible only when the whole import commits.
type Scenario struct {
	ID   uint   `gorm:"primaryKey"`
	UUID string `gorm:"uniqueIndex"`
	Name string

	CreationDateTime time.Time
}
