package models

import (
	"gorm.io/gorm"
)

// Client is a customer that receives quotations.
type Client struct {
	gorm.Model
	Name    string `gorm:"uniqueIndex;not null" json:"name"`
	TaxID   string `json:"tax_id"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}
