package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Module wraps one provider call against a signature and normalizes the
// reply into Fields. Extract never fails outward.
type Module struct {
	sig      Signature
	provider Provider
	loader   ImageLoader
	parser   *replyParser
	limiter  *rate.Limiter
	timeout  time.Duration
}

// Option configures a Module
type Option func(*Module)

// WithImageLoader sets how images are read before the provider call
func WithImageLoader(loader ImageLoader) Option {
	return func(m *Module) {
		m.loader = loader
	}
}

// WithRateLimit limits provider calls to perSecond requests per second.
// Zero or less disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(m *Module) {
		if perSecond > 0 {
			m.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithTimeout bounds each provider call. Zero keeps the provider's default.
func WithTimeout(d time.Duration) Option {
	return func(m *Module) {
		m.timeout = d
	}
}

// NewModule creates a Module answering InvoiceSignature with provider
func NewModule(provider Provider, opts ...Option) (*Module, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	parser, err := newReplyParser(InvoiceSignature)
	if err != nil {
		return nil, err
	}

	m := &Module{
		sig:      InvoiceSignature,
		provider: provider,
		parser:   parser,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Extract loads the image at path, asks the provider once and returns the
// totals. Any failure yields all-zero Fields with Failure set; missing
// fields read as zero and are listed in Missing.
func (m *Module) Extract(ctx context.Context, path string) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = failed(FailureInternal, fmt.Errorf("panic: %v", r))
		}
		m.log(path, result, time.Since(start))
	}()

	img, err := m.loader.Load(path)
	if err != nil {
		return failed(FailureImageLoad, err)
	}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return failed(FailureProvider, fmt.Errorf("waiting for rate limiter: %w", err))
		}
	}

	callCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	text, err := m.provider.Complete(callCtx, m.sig, img)
	if err != nil {
		return failed(FailureProvider, err)
	}

	reply, err := m.parser.parse(text)
	if err != nil {
		return failed(FailureMalformedReply, err)
	}

	return fromReply(reply)
}

// fromReply collapses absent values to zero. A present zero stays a present
// value and is not reported missing.
func fromReply(reply Reply) Result {
	var result Result
	value := func(name string) float64 {
		v := reply[name]
		if v == nil {
			result.Missing = append(result.Missing, name)
			return 0.0
		}
		return *v
	}

	result.Fields = Fields{
		TotalNetWorth: value(FieldTotalNetWorth),
		TotalVAT:      value(FieldTotalVAT),
		GrossWorth:    value(FieldGrossWorth),
	}
	return result
}

func (m *Module) log(path string, result Result, elapsed time.Duration) {
	if result.Failure != nil {
		slog.Error("Invoice extraction failed",
			"provider", m.provider.Name(),
			"path", path,
			"kind", result.Failure.Kind,
			"error", result.Failure.Err,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return
	}
	slog.Debug("Invoice extracted",
		"provider", m.provider.Name(),
		"path", path,
		"total_net_worth", result.Fields.TotalNetWorth,
		"total_vat", result.Fields.TotalVAT,
		"gross_worth", result.Fields.GrossWorth,
		"missing", result.Missing,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}
