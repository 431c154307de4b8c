package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/phenrril/ordercore/internal/adapters/events/kafka"
	"github.com/phenrril/ordercore/internal/adapters/httpserver"
	"github.com/phenrril/ordercore/internal/adapters/payments/razorpay"
	"github.com/phenrril/ordercore/internal/adapters/repo/memory"
	"github.com/phenrril/ordercore/internal/adapters/repo/postgres"
	"github.com/phenrril/ordercore/internal/config"
	"github.com/phenrril/ordercore/internal/domain"
	"github.com/phenrril/ordercore/internal/usecase"
)

type App struct {
	Config  *config.Config
	DB      *gorm.DB
	Store   domain.Store
	Gateway *razorpay.Gateway

	Catalog   *usecase.CatalogUC
	Stock     *usecase.StockLedger
	Taxes     *usecase.TaxCalculator
	Carts     *usecase.CartManager
	Orders    *usecase.OrderWorkflow
	Payments  *usecase.PaymentWorkflow
	Materials *usecase.MaterialPlanner
	Invoices  *usecase.InvoiceGenerator

	publisher *kafka.Publisher
}

// OpenDB connects to Postgres, retrying while the database comes up.
func OpenDB(ctx context.Context, cfg config.DBConfig, attempts int) (*gorm.DB, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := gorm.Open(pgdriver.Open(cfg.ConnString()), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err == nil {
			sqlDB, derr := db.DB()
			if derr == nil {
				if derr = sqlDB.PingContext(ctx); derr == nil {
					sqlDB.SetMaxOpenConns(20)
					sqlDB.SetMaxIdleConns(5)
					sqlDB.SetConnMaxLifetime(30 * time.Minute)
					return db, nil
				}
			}
			err = derr
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", i).Str("host", cfg.Host).Msg("database not ready")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i) * time.Second):
		}
	}
	return nil, fmt.Errorf("connect database: %w", lastErr)
}

// NewApp wires the workflows over the configured store. db may be nil when
// the memory store is selected.
func NewApp(cfg *config.Config, db *gorm.DB) (*App, error) {
	a := &App{Config: cfg, DB: db}
	switch cfg.Store {
	case "memory":
		a.Store = memory.NewStore()
	default:
		if db == nil {
			return nil, errors.New("postgres store needs a database handle")
		}
		a.Store = postgres.NewStore(db)
	}

	a.Gateway = razorpay.NewGateway(razorpay.Config{
		KeyID:         cfg.Razorpay.KeyID,
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
		BaseURL:       cfg.Razorpay.BaseURL,
		Timeout:       cfg.Razorpay.Timeout,
	})
	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		log.Warn().Msg("razorpay credentials missing, payment creation will fail")
	}

	var events domain.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		a.publisher = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		events = a.publisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing lifecycle events")
	}

	a.Catalog = &usecase.CatalogUC{Store: a.Store}
	a.Stock = &usecase.StockLedger{Store: a.Store}
	a.Taxes = &usecase.TaxCalculator{Store: a.Store}
	a.Carts = &usecase.CartManager{Store: a.Store}
	a.Orders = &usecase.OrderWorkflow{Store: a.Store, Events: events}
	a.Payments = &usecase.PaymentWorkflow{Store: a.Store, Gateway: a.Gateway, Events: events, Currency: cfg.Currency}
	a.Materials = &usecase.MaterialPlanner{Store: a.Store, Events: events}
	a.Invoices = &usecase.InvoiceGenerator{Store: a.Store, Events: events}
	return a, nil
}

func (a *App) HTTPHandler() http.Handler {
	secret := a.Config.ActorTokenSecret
	if secret == "" {
		log.Warn().Msg("ACTOR_TOKEN_SECRET not set, using development secret")
		secret = "dev-actor-secret"
	}
	return httpserver.New(httpserver.Deps{
		Carts:       a.Carts,
		Orders:      a.Orders,
		Payments:    a.Payments,
		Materials:   a.Materials,
		Invoices:    a.Invoices,
		Webhooks:    a.Gateway,
		TokenSecret: []byte(secret),
	})
}

// MigrateAndSeed creates the schema on Postgres and, when SEED is set and
// the catalog is empty, loads a small demo catalog.
func (a *App) MigrateAndSeed(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.WithContext(ctx).AutoMigrate(
			&domain.User{}, &domain.Address{},
			&domain.Product{}, &domain.Variant{}, &domain.Size{}, &domain.VariantSize{}, &domain.Stock{},
			&domain.Cart{}, &domain.CartItem{},
			&domain.Order{}, &domain.OrderItem{},
			&domain.Payment{}, &domain.WebhookEvent{},
			&domain.TaxConfiguration{},
			&domain.MaterialType{}, &domain.RawMaterial{}, &domain.Supplier{}, &domain.MaterialSupplier{}, &domain.ManufacturingSpec{},
			&domain.Invoice{},
		); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
		db := a.DB.WithContext(ctx)
		if err := createIndexes(func(q string) error { return db.Exec(q).Error }); err != nil {
			return err
		}
	}
	if !a.Config.Seed {
		return nil
	}
	if a.DB != nil {
		var n int64
		if err := a.DB.WithContext(ctx).Model(&domain.Product{}).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
	return a.seed(ctx)
}

// Constraints AutoMigrate cannot express.
var indexes = []struct{ name, sql string }{
	// one active cart per user
	{"cart index", "CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_one_active ON carts (user_id) WHERE status = 'active'"},
	// at most one settled payment per order and type
	{"payment index", "CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_one_success ON payments (order_id, type) WHERE status = 'success'"},
	{"invoice index", "CREATE INDEX IF NOT EXISTS idx_invoices_number_prefix ON invoices (number text_pattern_ops)"},
}

func createIndexes(exec func(q string) error) error {
	for _, ix := range indexes {
		if err := exec(ix.sql); err != nil {
			return fmt.Errorf("%s: %w", ix.name, err)
		}
	}
	return nil
}

func (a *App) seed(ctx context.Context) error {
	now := time.Now().UTC()
	err := a.Store.WithinTx(ctx, func(tx domain.Store) error {
		return tx.Taxes().Save(ctx, &domain.TaxConfiguration{
			ID: uuid.New(), Name: "GST 18%", Percentage: decimal.NewFromInt(18),
			EffectiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), IsActive: true, CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}

	p := &domain.Product{Name: "Kurta", Description: "Straight cut cotton kurta"}
	if err := a.Catalog.CreateProduct(ctx, p); err != nil {
		return err
	}
	v := &domain.Variant{ProductID: p.ID, SKU: "KRT-IND", Color: "indigo", Fabric: "cotton", BasePrice: decimal.NewFromInt(1200)}
	if err := a.Catalog.CreateVariant(ctx, v); err != nil {
		return err
	}
	cotton := &domain.RawMaterial{ID: uuid.New(), Name: "Cotton fabric", UnitPrice: decimal.NewFromInt(180), CurrentQuantity: decimal.NewFromInt(200), DefaultReorderLevel: ptr(decimal.NewFromInt(40)), CreatedAt: now, UpdatedAt: now}
	if err := a.Store.WithinTx(ctx, func(tx domain.Store) error { return tx.Materials().Save(ctx, cotton) }); err != nil {
		return err
	}
	for _, size := range []struct {
		code, name     string
		markup, fabric string
	}{
		{"S", "Small", "0", "2.25"},
		{"M", "Medium", "5", "2.5"},
		{"L", "Large", "10", "2.75"},
	} {
		sz := &domain.Size{Code: size.code, Name: size.name, MarkupPct: decimal.RequireFromString(size.markup)}
		if err := a.Catalog.CreateSize(ctx, sz); err != nil {
			return err
		}
		vs, err := a.Catalog.AddVariantSize(ctx, v.ID, sz.ID, 25)
		if err != nil {
			return err
		}
		spec := &domain.ManufacturingSpec{ID: uuid.New(), VariantSizeID: vs.ID, MaterialID: cotton.ID, QuantityRequired: decimal.RequireFromString(size.fabric), CreatedAt: now}
		if err := a.Store.WithinTx(ctx, func(tx domain.Store) error { return tx.Materials().SaveSpec(ctx, spec) }); err != nil {
			return err
		}
	}
	log.Info().Str("product", p.Name).Msg("demo catalog seeded")
	return nil
}

// SweepCarts marks carts untouched for longer than CartTTL as abandoned,
// once per interval until ctx ends.
func (a *App) SweepCarts(ctx context.Context, interval time.Duration) {
	if a.Config.CartTTL <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.Carts.AbandonStale(ctx, a.Config.CartTTL)
			if err != nil {
				log.Warn().Err(err).Msg("cart sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int("carts", n).Msg("stale carts abandoned")
			}
		}
	}
}

func (a *App) Close() error {
	if a.publisher != nil {
		return a.publisher.Close()
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
