package invoice

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "invoices"

// BoltDB implements the DB interface using BoltDB. IDs come from the bucket
// sequence, so they increase and are never reused.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// itob encodes an ID big-endian so keys iterate in ID order
func itob(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

// InsertInvoice assigns the next sequence number and saves the invoice.
// The ID is only kept on the invoice if the transaction commits.
func (b *BoltDB) InsertInvoice(ctx context.Context, invoice *Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var id uint64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating id: %w", err)
		}

		row := *invoice
		row.ID = seq
		data, err := json.Marshal(&row)
		if err != nil {
			return fmt.Errorf("marshaling invoice: %w", err)
		}
		if err := bucket.Put(itob(seq), data); err != nil {
			return err
		}
		id = seq
		return nil
	})
	if err != nil {
		return err
	}

	invoice.ID = id
	return nil
}

// GetInvoice retrieves an invoice by ID
func (b *BoltDB) GetInvoice(ctx context.Context, id uint64) (*Invoice, error) {
	var invoice *Invoice
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get(itob(id))
		if data == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return json.Unmarshal(data, &invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// ListInvoices returns all invoices in ID order
func (b *BoltDB) ListInvoices(ctx context.Context) ([]*Invoice, error) {
	invoices := make([]*Invoice, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var invoice Invoice
			if err := json.Unmarshal(v, &invoice); err != nil {
				return fmt.Errorf("unmarshaling invoice: %w", err)
			}
			invoices = append(invoices, &invoice)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// Ping always succeeds once the file is open
func (b *BoltDB) Ping(ctx context.Context) error {
	return nil
}

// Close closes the database file
func (b *BoltDB) Close() error {
	return b.db.Close()
}
