package invoice

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormDB implements the DB interface on a relational database through GORM
type GormDB struct {
	db *gorm.DB
}

// NewPostgresDB connects to Postgres and migrates the invoices table
func NewPostgresDB(dsn string) (*GormDB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	return NewGormDB(db)
}

// NewGormDB wraps an open GORM connection and migrates the invoices table
func NewGormDB(db *gorm.DB) (*GormDB, error) {
	if err := db.AutoMigrate(&Invoice{}); err != nil {
		return nil, fmt.Errorf("migrating invoices table: %w", err)
	}
	return &GormDB{db: db}, nil
}

// InsertInvoice inserts the invoice in its own transaction, committed on
// success and rolled back on any error
func (g *GormDB) InsertInvoice(ctx context.Context, invoice *Invoice) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(invoice).Error; err != nil {
			return fmt.Errorf("inserting invoice: %w", err)
		}
		return nil
	})
}

// GetInvoice retrieves an invoice by ID
func (g *GormDB) GetInvoice(ctx context.Context, id uint64) (*Invoice, error) {
	var invoice Invoice
	err := g.db.WithContext(ctx).First(&invoice, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting invoice %d: %w", id, err)
	}
	return &invoice, nil
}

// ListInvoices returns all invoices in ID order
func (g *GormDB) ListInvoices(ctx context.Context) ([]*Invoice, error) {
	invoices := make([]*Invoice, 0)
	if err := g.db.WithContext(ctx).Order("id").Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return invoices, nil
}

// Ping checks the connection pool can reach the database
func (g *GormDB) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (g *GormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
