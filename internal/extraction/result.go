package extraction

import "fmt"

// FailureKind classifies why an extraction degraded to zero
type FailureKind string

const (
	FailureImageLoad      FailureKind = "image_load"
	FailureProvider       FailureKind = "provider"
	FailureMalformedReply FailureKind = "malformed_reply"
	FailureInternal       FailureKind = "internal"
)

// Failure records the error that made an extraction fall back to zero
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Fields holds the three extracted invoice totals
type Fields struct {
	TotalNetWorth float64 `json:"total_net_worth"`
	TotalVAT      float64 `json:"total_vat"`
	GrossWorth    float64 `json:"gross_worth"`
}

// Result is the outcome of one extraction. Fields is always usable: it is all
// zero when Failure is set, and a missing field reads as zero. Missing and
// Failure let a caller tell those cases apart from a real zero.
type Result struct {
	Fields  Fields
	Missing []string
	Failure *Failure
}

// OK reports whether the provider call produced a usable reply
func (r Result) OK() bool {
	return r.Failure == nil
}

// Status is "ok" or the failure kind
func (r Result) Status() string {
	if r.Failure == nil {
		return "ok"
	}
	return string(r.Failure.Kind)
}

// Map returns the fixed three-key mapping
func (r Result) Map() map[string]float64 {
	return map[string]float64{
		FieldTotalNetWorth: r.Fields.TotalNetWorth,
		FieldTotalVAT:      r.Fields.TotalVAT,
		FieldGrossWorth:    r.Fields.GrossWorth,
	}
}

func failed(kind FailureKind, err error) Result {
	return Result{Failure: &Failure{Kind: kind, Err: err}}
}
