package models

import (
	"time"

	"gorm.io/gorm"
)

// Ingredient is a raw material used by one or more recipes. Ad-hoc
// simulation ingredients never reach this table; they live only inside a
// session's simulation state.
type Ingredient struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;not null" json:"name"`
	Unit string `gorm:"not null;default:kg" json:"unit"`

	Components []IngredientComponent `gorm:"foreignKey:CompoundID" json:"components,omitempty"`
	Prices     []PurchasePrice       `gorm:"foreignKey:IngredientID" json:"prices,omitempty"`
}

// IngredientComponent describes one part of a compound ingredient (a serum
// or similar pre-mix). The compound's price is the proportion-weighted sum of
// its components' latest prices.
type IngredientComponent struct {
	gorm.Model
	CompoundID  uint    `gorm:"not null;index" json:"compound_id"`
	ComponentID uint    `gorm:"not null" json:"component_id"`
	Proportion  float64 `gorm:"not null" json:"proportion"`

	Component *Ingredient `gorm:"foreignKey:ComponentID" json:"component,omitempty"`
}

// PurchasePrice is one observed purchase of an ingredient. The most recent
// observation (by ObservedAt, ties broken by insertion order) is the
// authoritative price. QuoteRate above 1.0 marks the unit price as a
// foreign-currency base amount recorded at that historical exchange rate;
// 1.0 or below marks it as final local currency.
type PurchasePrice struct {
	gorm.Model
	IngredientID uint      `gorm:"not null;index" json:"ingredient_id"`
	UnitPrice    float64   `gorm:"not null" json:"unit_price"`
	QuoteRate    float64   `gorm:"not null;default:1" json:"quote_rate"`
	FreightCost  float64   `json:"freight_cost"`
	OtherCosts   float64   `json:"other_costs"`
	ObservedAt   time.Time `gorm:"not null;index" json:"observed_at"`
}
