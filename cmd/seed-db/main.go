// Command seed-db imports a product catalog from gzip-compressed JSONL files
// and seeds demo company data for local development.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/pos-settlement/internal/domain/company"
	"github.com/xenking/pos-settlement/internal/domain/credit"
	"github.com/xenking/pos-settlement/internal/domain/promotion"
	"github.com/xenking/pos-settlement/internal/domain/tax"
	"github.com/xenking/pos-settlement/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		companyID   string
		batchSize   int
		demo        bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&companyID, "company", "demo", "company id owning the imported catalog")
	flag.IntVar(&batchSize, "batch", 500, "products per upsert batch")
	flag.BoolVar(&demo, "demo", true, "seed demo settings, customer, tax configurations and promotions")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if batchSize <= 0 {
		lg.Fatal("Batch size must be positive", zap.Int("batch", batchSize))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, companyID, batchSize, demo, flag.Args()); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		cancel()
		os.Exit(1)
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, companyID string, batchSize int, demo bool, files []string) error {
	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	store := postgres.NewStore(pool)

	if len(files) > 0 {
		products, err := readCatalog(ctx, lg, files, companyID)
		if err != nil {
			return errors.Wrap(err, "read catalog")
		}
		if err := writeCatalog(ctx, lg, store.Products(), products, batchSize); err != nil {
			return errors.Wrap(err, "write catalog")
		}
	}

	if demo {
		w := demoWriters{
			companies:  store.Companies(),
			customers:  store.Customers(),
			taxes:      store.Taxes(),
			promotions: store.Promotions(),
		}
		if err := seedDemo(ctx, lg, w, companyID); err != nil {
			return errors.Wrap(err, "seed demo data")
		}
	}
	return nil
}

// demoWriters are the repositories the demo data goes to.
type demoWriters struct {
	companies  interface{ Put(context.Context, *company.Settings) error }
	customers  interface{ Insert(context.Context, *credit.Customer) error }
	taxes      interface{ Insert(context.Context, *tax.Configuration) error }
	promotions interface{ Insert(context.Context, *promotion.Promotion) error }
}

func seedDemo(ctx context.Context, lg *zap.Logger, w demoWriters, companyID string) error {
	if err := w.companies.Put(ctx, &company.Settings{CompanyID: companyID, CreditPaymentEnabled: true}); err != nil {
		return errors.Wrap(err, "put company settings")
	}

	customer := &credit.Customer{
		ID:          companyID + "-walk-in",
		CompanyID:   companyID,
		Name:        "Walk-in Customer",
		CreditLimit: decimal.NewFromInt(1_000_000),
	}
	if err := w.customers.Insert(ctx, customer); err != nil {
		return errors.Wrap(err, "insert customer")
	}

	taxes := []tax.Configuration{
		{ID: "ppn-11", Name: "PPN 11%", Rate: decimal.NewFromInt(11), IsSystemDefault: true},
		{ID: companyID + "-inclusive-10", CompanyID: companyID, Name: "Inclusive 10%", Rate: decimal.NewFromInt(10), IsInclusive: true},
	}
	for i := range taxes {
		if err := w.taxes.Insert(ctx, &taxes[i]); err != nil {
			return errors.Wrapf(err, "insert tax configuration %s", taxes[i].ID)
		}
	}

	promotions := []promotion.Promotion{
		{
			ID:            companyID + "-weekday-5",
			Name:          "Weekday 5% off",
			Type:          promotion.TypePercentage,
			Scope:         promotion.ScopeAll,
			DiscountValue: decimal.NewFromInt(5),
			IsStackable:   true,
		},
		{
			ID:              companyID + "-spend-save",
			Name:            "Spend 500k save 10%",
			Type:            promotion.TypeSpendSave,
			Scope:           promotion.ScopeAll,
			DiscountValue:   decimal.NewFromInt(10),
			MinimumPurchase: decimal.NewFromInt(500_000),
			Priority:        10,
		},
		{
			ID:          companyID + "-b2g1",
			Name:        "Beverages 3 for 2",
			Type:        promotion.TypeBuyXGetY,
			Scope:       promotion.ScopeCategory,
			ScopeItems:  []string{"beverage"},
			BuyQuantity: 3,
			GetQuantity: 1,
			IsStackable: true,
			Priority:    5,
		},
	}
	for i := range promotions {
		p := &promotions[i]
		p.CompanyID = companyID
		p.IsActive = true
		if err := w.promotions.Insert(ctx, p); err != nil {
			return errors.Wrapf(err, "insert promotion %s", p.ID)
		}
	}

	lg.Info("Demo data seeded",
		zap.String("company_id", companyID),
		zap.String("customer_id", customer.ID),
		zap.Int("tax_configurations", len(taxes)),
		zap.Int("promotions", len(promotions)),
	)
	return nil
}
