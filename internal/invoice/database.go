package invoice

import "context"

// DB defines the interface for invoice persistence. Rows are only ever
// inserted; nothing updates or deletes them.
type DB interface {
	// InsertInvoice stores a new invoice and sets its ID
	InsertInvoice(ctx context.Context, invoice *Invoice) error

	// GetInvoice retrieves an invoice by ID
	GetInvoice(ctx context.Context, id uint64) (*Invoice, error)

	// ListInvoices returns all invoices in ID order
	ListInvoices(ctx context.Context) ([]*Invoice, error)

	// Ping checks the database is reachable
	Ping(ctx context.Context) error

	// Close closes the database connection
	Close() error
}
