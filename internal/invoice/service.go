package invoice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/zombor/invoice-ocr/internal/extraction"
)

// Extractor turns a stored image into invoice totals. It never fails; a
// failed extraction is reported inside the result.
type Extractor interface {
	Extract(ctx context.Context, path string) extraction.Result
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles invoice uploads and lookups
type Service struct {
	db             DB
	extractor      Extractor
	storage        Storage
	metrics        *Metrics
	timeSource     TimeSource
	cleanupOrphans bool
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithOrphanCleanup deletes the uploaded file when its row cannot be stored
func WithOrphanCleanup(enabled bool) ServiceOption {
	return func(s *Service) {
		s.cleanupOrphans = enabled
	}
}

// WithMetrics records processing metrics on m
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTimeSource replaces the clock, for testing
func WithTimeSource(t TimeSource) ServiceOption {
	return func(s *Service) {
		s.timeSource = t
	}
}

// NewService creates a new Service
func NewService(db DB, extractor Extractor, storage Storage, opts ...ServiceOption) *Service {
	s := &Service{
		db:         db,
		extractor:  extractor,
		storage:    storage,
		timeSource: &defaultTimeSource{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	return s
}

// Upload is the result of processing one uploaded invoice
type Upload struct {
	Invoice    *Invoice
	Extraction extraction.Result
}

// ProcessInvoice saves the file, extracts its totals and stores the row.
// Extraction problems never fail the upload; storage and database errors do.
func (s *Service) ProcessInvoice(ctx context.Context, filename string, data []byte) (*Upload, error) {
	upload, err := s.processInvoice(ctx, filename, data)
	if err != nil {
		s.metrics.Uploads.WithLabelValues("error").Inc()
		return nil, err
	}
	s.metrics.Uploads.WithLabelValues("ok").Inc()
	return upload, nil
}

func (s *Service) processInvoice(ctx context.Context, filename string, data []byte) (*Upload, error) {
	key, err := s.storage.Save(filename, data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	start := time.Now()
	result := s.extractor.Extract(ctx, s.storage.Path(key))
	s.metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	s.metrics.Extractions.WithLabelValues(result.Status()).Inc()

	invoice := &Invoice{
		TotalNetWorth:    result.Fields.TotalNetWorth,
		TotalVAT:         result.Fields.TotalVAT,
		GrossWorth:       result.Fields.GrossWorth,
		FileName:         filename,
		StorageKey:       key,
		ExtractionStatus: result.Status(),
		CreatedAt:        s.timeSource.Now(),
	}

	if err := s.db.InsertInvoice(ctx, invoice); err != nil {
		s.handleOrphan(key, err)
		return nil, fmt.Errorf("saving invoice to database: %w", err)
	}

	slog.Info("Invoice stored",
		"id", invoice.ID,
		"file_name", filename,
		"storage_key", key,
		"extraction_status", invoice.ExtractionStatus,
	)

	return &Upload{Invoice: invoice, Extraction: result}, nil
}

// handleOrphan deals with a file whose row could not be stored
func (s *Service) handleOrphan(key string, cause error) {
	if !s.cleanupOrphans {
		s.metrics.OrphanedFiles.Inc()
		slog.Warn("Uploaded file left without a database row", "storage_key", key, "error", cause)
		return
	}
	if err := s.storage.Delete(key); err != nil {
		s.metrics.OrphanedFiles.Inc()
		slog.Warn("Failed to delete orphaned file", "storage_key", key, "error", err)
	}
}

// GetInvoice retrieves an invoice by ID
func (s *Service) GetInvoice(ctx context.Context, id uint64) (*Invoice, error) {
	invoice, err := s.db.GetInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return invoice, nil
}

// ListInvoices returns all invoices
func (s *Service) ListInvoices(ctx context.Context) ([]*Invoice, error) {
	invoices, err := s.db.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return invoices, nil
}

// GetInvoiceFile retrieves the uploaded file for an invoice with its content
// type. A file missing from storage is reported as ErrNotFound.
func (s *Service) GetInvoiceFile(ctx context.Context, id uint64) ([]byte, string, error) {
	invoice, err := s.db.GetInvoice(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice: %w", err)
	}

	data, err := s.storage.Get(invoice.StorageKey)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: file %s for invoice %d", ErrNotFound, invoice.StorageKey, id)
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice file: %w", err)
	}

	return data, http.DetectContentType(data), nil
}

// Ping checks the database
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
