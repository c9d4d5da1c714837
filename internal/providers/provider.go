package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"macrocollector/internal/model"
)

// Provider fetches the raw records of one indicator from an upstream API.
// An empty result is not an error.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]model.RawRecord, error)
}

// Query holds the source coordinates of one indicator. Which fields matter
// depends on the provider.
type Query struct {
	Indicator string
	Series    string
	Path      string
	Country   string
	PeriodKey string
	ValueKey  string
	Start     civil.Date
	End       civil.Date
}

var ErrInvalidQuery = errors.New("invalid query")

func (q Query) Validate() error {
	if strings.TrimSpace(q.Indicator) == "" {
		return fmt.Errorf("%w: indicator is required", ErrInvalidQuery)
	}
	if !q.Start.IsZero() && !q.Start.IsValid() {
		return fmt.Errorf("%w: invalid start date %s", ErrInvalidQuery, q.Start)
	}
	if !q.End.IsZero() && !q.End.IsValid() {
		return fmt.Errorf("%w: invalid end date %s", ErrInvalidQuery, q.End)
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.Start.After(q.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidQuery, q.Start, q.End)
	}
	return nil
}

// Failure kinds carried by FetchError. ErrInvalidQuery is reported for
// queries rejected before any request is made.
var (
	ErrTransport = errors.New("transport failure")
	ErrStatus    = errors.New("unexpected status")
	ErrPayload   = errors.New("malformed payload")
)

// FetchError reports a failed fetch for one indicator. errors.Is matches both
// the failure kind and the underlying cause.
type FetchError struct {
	Provider  string
	Indicator string
	Kind      error
	Err       error
}

func (e *FetchError) Error() string {
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s: fetch %s: %v", e.Provider, e.Indicator, e.Err)
	}
	return fmt.Sprintf("%s: fetch %s: %v: %v", e.Provider, e.Indicator, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func NewFetchError(provider, indicator string, kind, err error) *FetchError {
	return &FetchError{Provider: provider, Indicator: indicator, Kind: kind, Err: err}
}
