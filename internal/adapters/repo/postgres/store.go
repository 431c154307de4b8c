package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/phenrril/ordercore/internal/domain"
)

// Store implements domain.Store on gorm. Inside WithinTx the repositories
// share the transaction handle; nested WithinTx calls become savepoints.
type Store struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Users() domain.UserRepo         { return NewUserRepo(s.db) }
func (s *Store) Addresses() domain.AddressRepo  { return NewAddressRepo(s.db) }
func (s *Store) Catalog() domain.CatalogRepo    { return NewCatalogRepo(s.db) }
func (s *Store) Stock() domain.StockRepo        { return NewStockRepo(s.db) }
func (s *Store) Carts() domain.CartRepo         { return NewCartRepo(s.db) }
func (s *Store) Orders() domain.OrderRepo       { return NewOrderRepo(s.db) }
func (s *Store) Payments() domain.PaymentRepo   { return NewPaymentRepo(s.db) }
func (s *Store) Taxes() domain.TaxRepo          { return NewTaxRepo(s.db) }
func (s *Store) Materials() domain.MaterialRepo { return NewMaterialRepo(s.db) }
func (s *Store) Invoices() domain.InvoiceRepo   { return NewInvoiceRepo(s.db) }
func (s *Store) Webhooks() domain.WebhookRepo   { return NewWebhookRepo(s.db) }
