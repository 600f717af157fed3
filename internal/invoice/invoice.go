package invoice

import (
	"errors"
	"time"
)

// Invoice is one stored extraction: the three totals plus the uploaded file
type Invoice struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	TotalNetWorth    float64   `gorm:"column:total_net_worth" json:"total_net_worth"`
	TotalVAT         float64   `gorm:"column:total_vat" json:"total_vat"`
	GrossWorth       float64   `gorm:"column:gross_worth" json:"gross_worth"`
	FileName         string    `gorm:"column:file_name" json:"file_name"`
	StorageKey       string    `gorm:"column:storage_key" json:"storage_key"`
	ExtractionStatus string    `gorm:"column:extraction_status" json:"extraction_status"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName keeps the table name used by earlier deployments
func (Invoice) TableName() string {
	return "OCR_Invoices"
}

// ErrNotFound is returned by stores when no invoice has the requested ID
var ErrNotFound = errors.New("invoice not found")
