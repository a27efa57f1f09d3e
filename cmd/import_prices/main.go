package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/subosito/gotenv"
	"gorm.io/gorm"

	"minerva/internal/config"
	"minerva/internal/db"
	"minerva/models"
)

var (
	numberPattern   = regexp.MustCompile(`[-+]?\d+(?:[.,]\d+)?`)
	unitPattern     = regexp.MustCompile(`(?i)\((kg|g|l|lt|ml|un|u)\.?\)`)
	currencyPattern = regexp.MustCompile(`(?i)(US\$|U\$S|USD|DOLAR(ES)?)`)
	cleanWhitespace = regexp.MustCompile(`\s+`)
	fillerPattern   = regexp.MustCompile(`[.\-_:]{2,}`)
)

// priceRecord is one parsed line of a supplier price list.
type priceRecord struct {
	Name      string
	Unit      string
	UnitPrice float64
	QuoteRate float64
}

func main() {
	_ = gotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: import_prices <price-list.pdf> [observed-date YYYY-MM-DD]")
		os.Exit(2)
	}

	observedAt := time.Now().UTC()
	if len(os.Args) > 2 {
		parsed, err := parseObservedDate(os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid observed date: %v\n", err)
			os.Exit(2)
		}
		observedAt = parsed
	}

	if err := run(os.Args[1], observedAt); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(pdfPath string, observedAt time.Time) error {
	if strings.TrimSpace(pdfPath) == "" {
		return fmt.Errorf("pdf path must not be empty")
	}

	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return fmt.Errorf("read price list: %w", err)
	}

	text, err := extractTextFromPDF(data)
	if err != nil {
		return fmt.Errorf("extract pdf text: %w", err)
	}

	records := parsePriceLines(text)
	if len(records) == 0 {
		return errors.New("no price lines found in document")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	database, err := db.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(database); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	imported := 0
	for idx, record := range records {
		if err := database.Transaction(func(tx *gorm.DB) error {
			ingredient, err := findOrCreateIngredient(tx, record)
			if err != nil {
				return err
			}

			price := models.PurchasePrice{
				IngredientID: ingredient.ID,
				UnitPrice:    record.UnitPrice,
				QuoteRate:    record.QuoteRate,
				ObservedAt:   observedAt,
			}
			if err := tx.Create(&price).Error; err != nil {
				return fmt.Errorf("create price for %q: %w", ingredient.Name, err)
			}
			return nil
		}); err != nil {
			return fmt.Errorf("record %d (%s): %w", idx+1, record.Name, err)
		}
		imported++
	}

	fmt.Fprintf(os.Stdout, "Imported %d prices from %s\n", imported, filepath.Base(pdfPath))
	return nil
}

func extractTextFromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// parsePriceLines turns raw extracted text into price records. A line is a
// price line when it ends in at least one number: the first number is the
// unit price, and when the line carries a dollar marker the last number is
// the exchange rate the supplier quoted against. Lines without numbers are
// headings and get skipped.
func parsePriceLines(text string) []priceRecord {
	var records []priceRecord
	for _, rawLine := range strings.Split(text, "\n") {
		record, ok := parsePriceLine(rawLine)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records
}

func parsePriceLine(rawLine string) (priceRecord, bool) {
	line := cleanWhitespace.ReplaceAllString(strings.TrimSpace(rawLine), " ")
	if line == "" {
		return priceRecord{}, false
	}

	loc := numberPattern.FindStringIndex(line)
	if loc == nil || loc[0] == 0 {
		return priceRecord{}, false
	}

	name, unit := splitNameAndUnit(line[:loc[0]])
	if name == "" {
		return priceRecord{}, false
	}

	numbers := numberPattern.FindAllString(line[loc[0]:], -1)
	unitPrice := parseDecimal(numbers[0])
	if unitPrice <= 0 {
		return priceRecord{}, false
	}

	quoteRate := 1.0
	if isForeignQuoted(line) && len(numbers) > 1 {
		if rate := parseDecimal(numbers[len(numbers)-1]); rate > 0 {
			quoteRate = rate
		}
	}

	return priceRecord{
		Name:      name,
		Unit:      unit,
		UnitPrice: unitPrice,
		QuoteRate: quoteRate,
	}, true
}

func splitNameAndUnit(prefix string) (string, string) {
	unit := "kg"
	if match := unitPattern.FindStringSubmatch(prefix); match != nil {
		unit = normalizeUnit(match[1])
		prefix = unitPattern.ReplaceAllString(prefix, " ")
	}

	prefix = currencyPattern.ReplaceAllString(prefix, " ")
	prefix = fillerPattern.ReplaceAllString(prefix, " ")
	prefix = cleanWhitespace.ReplaceAllString(prefix, " ")
	name := strings.Trim(strings.TrimSpace(prefix), ".-_: ")
	return name, unit
}

func normalizeUnit(value string) string {
	switch strings.ToLower(value) {
	case "l", "lt":
		return "l"
	case "un", "u":
		return "u"
	default:
		return strings.ToLower(value)
	}
}

func isForeignQuoted(line string) bool {
	upper := strings.ToUpper(line)
	for _, marker := range []string{"USD", "U$S", "US$", "DOLAR"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

func parseDecimal(value string) float64 {
	value = strings.ReplaceAll(value, ",", ".")
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseObservedDate(value string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func findOrCreateIngredient(tx *gorm.DB, record priceRecord) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	err := tx.Where("lower(name) = ?", strings.ToLower(record.Name)).First(&ingredient).Error
	if err == nil {
		return &ingredient, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find ingredient %q: %w", record.Name, err)
	}

	ingredient = models.Ingredient{Name: record.Name, Unit: record.Unit}
	if err := tx.Create(&ingredient).Error; err != nil {
		return nil, fmt.Errorf("create ingredient %q: %w", record.Name, err)
	}
	return &ingredient, nil
}
