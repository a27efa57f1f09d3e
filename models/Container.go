package models

import (
	"time"

	"gorm.io/gorm"
)

// Container is a packaging unit (drum, bottle, bidon) with a fixed capacity
// in litres.
type Container struct {
	gorm.Model
	Description string  `gorm:"uniqueIndex;not null" json:"description"`
	Capacity    float64 `gorm:"not null" json:"capacity"`

	Prices []ContainerPrice `gorm:"foreignKey:ContainerID" json:"prices,omitempty"`
}

// ContainerPrice is one observed purchase price for a container. Container
// prices are recorded as foreign-currency base amounts and re-quoted at the
// simulation's current exchange rate, the same way foreign ingredient prices
// are.
type ContainerPrice struct {
	gorm.Model
	ContainerID uint      `gorm:"not null;index" json:"container_id"`
	UnitPrice   float64   `gorm:"not null" json:"unit_price"`
	ObservedAt  time.Time `gorm:"not null;index" json:"observed_at"`
}
