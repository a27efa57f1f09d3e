package models

import (
	"gorm.io/gorm"
)

// ClientQuote is a finalized quotation for one client. Once persisted it is
// immutable; the in-progress draft lives in the session until finalization.
type ClientQuote struct {
	gorm.Model
	ClientID     uint    `gorm:"not null;index" json:"client_id"`
	MarginPct    float64 `gorm:"not null" json:"margin_pct"`
	TotalVolume  float64 `gorm:"not null" json:"total_volume"`
	TotalCost    float64 `gorm:"not null" json:"total_cost"`
	TotalPrice   float64 `gorm:"not null" json:"total_price"`
	ExchangeRate float64 `gorm:"not null" json:"exchange_rate"`

	Client *Client           `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Lines  []ClientQuoteLine `gorm:"foreignKey:ClientQuoteID" json:"lines,omitempty"`
}

// ClientQuoteLine is one simulated batch inside a finalized quotation.
type ClientQuoteLine struct {
	gorm.Model
	ClientQuoteID  uint    `gorm:"not null;index" json:"client_quote_id"`
	RecipeID       uint    `json:"recipe_id"`
	RecipeName     string  `gorm:"not null" json:"recipe_name"`
	Volume         float64 `gorm:"not null" json:"volume"`
	Batches        int     `gorm:"not null;default:1" json:"batches"`
	Cost           float64 `gorm:"not null" json:"cost"`
	MarginPct      float64 `gorm:"not null" json:"margin_pct"`
	SalePrice      float64 `gorm:"not null" json:"sale_price"`
	SalePriceUSD   float64 `json:"sale_price_usd"`
	ContainerName  string  `json:"container_name"`
	ContainerUnits int     `json:"container_units"`
}
