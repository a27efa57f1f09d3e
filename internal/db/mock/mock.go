package mock

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "minerva/internal/log"
	"minerva/models"
)

// New returns an in-memory sqlite database seeded with representative
// production data: ingredients with price histories, a recipe, containers,
// a month of expenses, a client and a login user.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	db, err := gorm.Open(sqlite.Open("file:minerva-mock?mode=memory&cache=shared"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.Ingredient{},
		&models.IngredientComponent{},
		&models.PurchasePrice{},
		&models.Recipe{},
		&models.RecipeIngredient{},
		&models.Container{},
		&models.ContainerPrice{},
		&models.Expense{},
		&models.Client{},
		&models.ClientQuote{},
		&models.ClientQuoteLine{},
		&models.User{},
	); err != nil {
		return nil, err
	}

	if err := seed(ctx, db); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return db, nil
}

func seed(ctx context.Context, db *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	password, err := bcrypt.GenerateFromPassword([]byte("fabrica"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &models.User{
		Name:         "Laura Demarchi",
		Email:        "laura@minerva.app",
		PasswordHash: string(password),
	}
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		return err
	}

	now := time.Now().UTC()

	lauril := models.Ingredient{Name: "Lauril Sulfato de Sodio", Unit: "kg"}
	cocoamida := models.Ingredient{Name: "Cocoamida DEA", Unit: "kg"}
	keratina := models.Ingredient{Name: "Keratina Hidrolizada", Unit: "kg"}
	esencia := models.Ingredient{Name: "Esencia Almendras", Unit: "L"}
	serum := models.Ingredient{Name: "Serum Reparador Base", Unit: "kg"}

	ingredients := []*models.Ingredient{&lauril, &cocoamida, &keratina, &esencia, &serum}
	for _, ingredient := range ingredients {
		if err := db.WithContext(ctx).Create(ingredient).Error; err != nil {
			return err
		}
	}

	// Lauril and keratina are imported: unit price is a dollar base amount
	// recorded at the exchange rate of the purchase day. The rest were
	// bought locally and their prices never move with the rate again.
	prices := []models.PurchasePrice{
		{IngredientID: lauril.ID, UnitPrice: 2.10, QuoteRate: 980, FreightCost: 0.08, ObservedAt: now.AddDate(0, -2, 0)},
		{IngredientID: lauril.ID, UnitPrice: 2.00, QuoteRate: 1200, FreightCost: 0.10, ObservedAt: now.AddDate(0, 0, -12)},
		{IngredientID: cocoamida.ID, UnitPrice: 3400, QuoteRate: 1, ObservedAt: now.AddDate(0, -1, 0)},
		{IngredientID: keratina.ID, UnitPrice: 14.50, QuoteRate: 1150, OtherCosts: 0.25, ObservedAt: now.AddDate(0, 0, -20)},
		{IngredientID: esencia.ID, UnitPrice: 9800, QuoteRate: 1, ObservedAt: now.AddDate(0, 0, -5)},
	}
	for _, price := range prices {
		priceCopy := price
		if err := db.WithContext(ctx).Create(&priceCopy).Error; err != nil {
			return err
		}
	}

	components := []models.IngredientComponent{
		{CompoundID: serum.ID, ComponentID: keratina.ID, Proportion: 0.15},
		{CompoundID: serum.ID, ComponentID: cocoamida.ID, Proportion: 0.85},
	}
	for _, component := range components {
		componentCopy := component
		if err := db.WithContext(ctx).Create(&componentCopy).Error; err != nil {
			return err
		}
	}

	shampoo := models.Recipe{
		Name:  "Shampoo Nutritivo Almendras",
		Notes: "Formulacion base para tanda de 200 litros.",
	}
	if err := db.WithContext(ctx).Create(&shampoo).Error; err != nil {
		return err
	}

	recipeLines := []models.RecipeIngredient{
		{RecipeID: shampoo.ID, IngredientID: lauril.ID, BaseQuantity: 24},
		{RecipeID: shampoo.ID, IngredientID: cocoamida.ID, BaseQuantity: 6},
		{RecipeID: shampoo.ID, IngredientID: keratina.ID, BaseQuantity: 1.2},
		{RecipeID: shampoo.ID, IngredientID: esencia.ID, BaseQuantity: 0.8},
	}
	for _, line := range recipeLines {
		lineCopy := line
		if err := db.WithContext(ctx).Create(&lineCopy).Error; err != nil {
			return err
		}
	}

	bidon := models.Container{Description: "Bidon 5L", Capacity: 5}
	botella := models.Container{Description: "Botella 1L", Capacity: 1}
	for _, container := range []*models.Container{&bidon, &botella} {
		if err := db.WithContext(ctx).Create(container).Error; err != nil {
			return err
		}
	}

	containerPrices := []models.ContainerPrice{
		{ContainerID: bidon.ID, UnitPrice: 1.40, ObservedAt: now.AddDate(0, -1, 0)},
		{ContainerID: bidon.ID, UnitPrice: 1.55, ObservedAt: now.AddDate(0, 0, -8)},
		{ContainerID: botella.ID, UnitPrice: 0.60, ObservedAt: now.AddDate(0, 0, -8)},
	}
	for _, price := range containerPrices {
		priceCopy := price
		if err := db.WithContext(ctx).Create(&priceCopy).Error; err != nil {
			return err
		}
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	expenses := []models.Expense{
		{Category: "Alquiler", Beneficiary: "Inmobiliaria Centro", Reference: "ALQ-0001", Amount: 450000, InvoiceDate: monthStart.AddDate(0, 0, 2)},
		{Category: "Energia", Beneficiary: "EPE", Reference: "EPE-0455", Amount: 120000, InvoiceDate: monthStart.AddDate(0, 0, 10)},
		{Category: "Sueldos", Beneficiary: "Planta", Reference: "SUE-0023", Amount: 950000, InvoiceDate: monthStart.AddDate(0, 0, 1)},
	}
	for _, expense := range expenses {
		expenseCopy := expense
		if err := db.WithContext(ctx).Create(&expenseCopy).Error; err != nil {
			return err
		}
	}

	client := models.Client{
		Name:    "Distribuidora Litoral",
		TaxID:   "30-71234567-9",
		Email:   "compras@litoral.example",
		Phone:   "+54 342 555 0101",
		Address: "Av. Freyre 2200, Santa Fe",
	}
	if err := db.WithContext(ctx).Create(&client).Error; err != nil {
		return err
	}

	applog.Debug(ctx, "mock database seeded")
	return nil
}
