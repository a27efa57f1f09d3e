package models

import (
	"gorm.io/gorm"
)

// Recipe is a base formulation. All ingredient quantities are defined for a
// reference batch of costing.BaseVolume litres; production runs scale them
// linearly.
type Recipe struct {
	gorm.Model
	Name  string `gorm:"uniqueIndex;not null" json:"name"`
	Notes string `gorm:"type:text" json:"notes"`

	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeID" json:"ingredients,omitempty"`
}

// RecipeIngredient links a recipe to an ingredient with its base quantity.
// The stored quantity never changes during simulation; scaled quantities are
// derived values.
type RecipeIngredient struct {
	gorm.Model
	RecipeID     uint    `gorm:"not null;index" json:"recipe_id"`
	IngredientID uint    `gorm:"not null" json:"ingredient_id"`
	BaseQuantity float64 `gorm:"not null" json:"base_quantity"`

	Ingredient *Ingredient `gorm:"foreignKey:IngredientID" json:"ingredient,omitempty"`
}
