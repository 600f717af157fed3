package extraction

import (
	"context"
	"errors"
)

// Provider is an LLM completion service that answers a signature for an image
type Provider interface {
	// Complete sends the image and the signature's prompt and returns the raw
	// reply text
	Complete(ctx context.Context, sig Signature, img Image) (string, error)
	// Name identifies the provider in logs
	Name() string
	// Close releases the provider's resources
	Close() error
}

// ErrMissingAPIKey is returned by providers constructed without a key.
// Construction still succeeds so the service can start.
var ErrMissingAPIKey = errors.New("provider api key is not configured")
