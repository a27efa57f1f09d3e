// Package catalog loads pricing, recipe and expense data from the database
// and adapts it to the shapes the costing engine consumes. Lookup failures
// are logged and degrade to zero values so a simulation always computes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"minerva/internal/costing"
	applog "minerva/internal/log"
	"minerva/models"
)

const (
	priceCacheTTL     = 5 * time.Minute
	priceCacheCleanup = 10 * time.Minute
)

var errCircularComposition = errors.New("catalog: circular compound composition")

// Catalog is the database-backed implementation of the costing engine's
// price sources. Latest-price lookups are memoised for a short TTL because a
// single batch computation asks for every ingredient on every recompute.
type Catalog struct {
	db    *gorm.DB
	cache *gocache.Cache
}

func New(db *gorm.DB) *Catalog {
	return &Catalog{
		db:    db,
		cache: gocache.New(priceCacheTTL, priceCacheCleanup),
	}
}

// Invalidate drops all memoised prices. Handlers call it after any write to
// purchase prices, container prices or compound compositions.
func (c *Catalog) Invalidate() {
	c.cache.Flush()
}

// LatestIngredientPrice returns the most recent purchase observation for the
// ingredient. Compound ingredients are resolved recursively into a fixed
// local-currency price from their components' latest observations.
func (c *Catalog) LatestIngredientPrice(ctx context.Context, ingredientID uint) costing.LatestPrice {
	if c == nil || c.db == nil || ingredientID == 0 {
		return costing.LatestPrice{}
	}

	key := fmt.Sprintf("ingredient:%d", ingredientID)
	if cached, ok := c.cache.Get(key); ok {
		if price, ok := cached.(costing.LatestPrice); ok {
			return price
		}
	}

	price, err := c.resolveIngredientPrice(ctx, ingredientID, map[uint]bool{})
	if err != nil {
		applog.Error(ctx, "ingredient price lookup failed", "error", err, "ingredientID", ingredientID)
		return costing.LatestPrice{}
	}

	c.cache.Set(key, price, gocache.DefaultExpiration)
	return price
}

func (c *Catalog) resolveIngredientPrice(ctx context.Context, ingredientID uint, path map[uint]bool) (costing.LatestPrice, error) {
	if path[ingredientID] {
		return costing.LatestPrice{}, errCircularComposition
	}
	path[ingredientID] = true
	defer delete(path, ingredientID)

	var components []models.IngredientComponent
	if err := c.db.WithContext(ctx).
		Where("compound_id = ?", ingredientID).
		Find(&components).Error; err != nil {
		return costing.LatestPrice{}, err
	}

	if len(components) == 0 {
		return c.latestObservation(ctx, ingredientID)
	}

	// Compounds collapse to a fixed local price: each component's latest
	// observation is converted at its own recorded rate and weighted by
	// its proportion in the mix.
	total := 0.0
	for _, component := range components {
		componentPrice, err := c.resolveIngredientPrice(ctx, component.ComponentID, path)
		if err != nil {
			return costing.LatestPrice{}, err
		}
		unitLocal := componentPrice.UnitPrice
		if componentPrice.QuoteRate > 1 {
			unitLocal *= componentPrice.QuoteRate
		}
		total += component.Proportion * (unitLocal + componentPrice.FreightAddon + componentPrice.OtherAddon)
	}

	return costing.LatestPrice{UnitPrice: total, QuoteRate: 1}, nil
}

func (c *Catalog) latestObservation(ctx context.Context, ingredientID uint) (costing.LatestPrice, error) {
	var price models.PurchasePrice
	err := c.db.WithContext(ctx).
		Where("ingredient_id = ?", ingredientID).
		Order("observed_at DESC, id DESC").
		First(&price).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return costing.LatestPrice{}, nil
	}
	if err != nil {
		return costing.LatestPrice{}, err
	}

	return costing.LatestPrice{
		UnitPrice:    price.UnitPrice,
		QuoteRate:    price.QuoteRate,
		FreightAddon: price.FreightCost,
		OtherAddon:   price.OtherCosts,
	}, nil
}

// LatestContainerPrice returns the most recent price observation for a
// container together with its capacity. Container prices are always foreign
// base amounts.
func (c *Catalog) LatestContainerPrice(ctx context.Context, containerID uint) costing.ContainerQuote {
	if c == nil || c.db == nil || containerID == 0 {
		return costing.ContainerQuote{}
	}

	key := fmt.Sprintf("container:%d", containerID)
	if cached, ok := c.cache.Get(key); ok {
		if quote, ok := cached.(costing.ContainerQuote); ok {
			return quote
		}
	}

	var container models.Container
	if err := c.db.WithContext(ctx).First(&container, containerID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Error(ctx, "container lookup failed", "error", err, "containerID", containerID)
		}
		return costing.ContainerQuote{}
	}

	quote := costing.ContainerQuote{Capacity: container.Capacity}

	var price models.ContainerPrice
	err := c.db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Order("observed_at DESC, id DESC").
		First(&price).Error
	switch {
	case err == nil:
		quote.UnitPriceForeign = price.UnitPrice
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Capacity alone is still useful for unit counts.
	default:
		applog.Error(ctx, "container price lookup failed", "error", err, "containerID", containerID)
		return costing.ContainerQuote{}
	}

	c.cache.Set(key, quote, gocache.DefaultExpiration)
	return quote
}

// RecipeLines loads a recipe and projects its stored composition into
// simulation lines, preserving the recipe's line order.
func (c *Catalog) RecipeLines(ctx context.Context, recipeID uint) (string, []costing.SimulationLine, error) {
	if c == nil || c.db == nil {
		return "", nil, gorm.ErrInvalidDB
	}

	var recipe models.Recipe
	if err := c.db.WithContext(ctx).First(&recipe, recipeID).Error; err != nil {
		return "", nil, err
	}

	var rows []models.RecipeIngredient
	if err := c.db.WithContext(ctx).
		Preload("Ingredient").
		Where("recipe_id = ?", recipeID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return "", nil, err
	}

	lines := make([]costing.SimulationLine, 0, len(rows))
	for _, row := range rows {
		line := costing.SimulationLine{
			IngredientID: row.IngredientID,
			BaseQuantity: row.BaseQuantity,
		}
		if row.Ingredient != nil {
			line.Name = row.Ingredient.Name
			line.Unit = row.Ingredient.Unit
		}
		lines = append(lines, line)
	}

	return recipe.Name, lines, nil
}

// MonthlyExpenseLines sums the given month's expenses per category. An
// expense belongs to the month of its payment date when paid, otherwise its
// invoice date.
func (c *Catalog) MonthlyExpenseLines(ctx context.Context, year int, month time.Month) ([]costing.ExpenseLine, error) {
	if c == nil || c.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var expenses []models.Expense
	if err := c.db.WithContext(ctx).Order("id ASC").Find(&expenses).Error; err != nil {
		return nil, err
	}

	totals := map[string]float64{}
	order := make([]string, 0)
	for _, expense := range expenses {
		effective := expense.InvoiceDate
		if expense.PaymentDate != nil {
			effective = *expense.PaymentDate
		}
		if effective.Year() != year || effective.Month() != month {
			continue
		}
		if _, seen := totals[expense.Category]; !seen {
			order = append(order, expense.Category)
		}
		totals[expense.Category] += expense.Amount
	}

	lines := make([]costing.ExpenseLine, 0, len(order))
	for _, category := range order {
		lines = append(lines, costing.ExpenseLine{Label: category, Amount: totals[category]})
	}
	return lines, nil
}
