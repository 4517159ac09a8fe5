package data

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrNotFound is returned when a provider has no data for the request.
var ErrNotFound = errors.New("data not found")

// Provider supplies market data for a single underlying.
type Provider interface {
	// Spot returns the last trade price of the underlying.
	Spot(ctx context.Context, underlying string) (float64, error)
	// Expiries lists available expiry dates as YYYY-MM-DD strings.
	Expiries(ctx context.Context, underlying string) ([]string, error)
	// Chain returns the raw call and put rows for one expiry.
	Chain(ctx context.Context, underlying, expiry string) (calls, puts []ContractRow, err error)
	// Secondary returns the fallback provider, if any.
	Secondary() Provider
}

// ContractRow is one raw per-strike row as delivered by a provider.
// A nil field means the provider had no value for it.
type ContractRow struct {
	Strike            float64
	Bid               *float64
	Ask               *float64
	ImpliedVolatility *float64
	Volume            *int64
	OpenInterest      *int64
}

// Float returns a pointer to v, or nil when v is NaN or infinite.
func Float(v float64) *float64 {
	if !finite(v) {
		return nil
	}
	return &v
}

// Int returns a pointer to v.
func Int(v int64) *int64 {
	return &v
}

// FloatOr dereferences p, substituting def for nil or non-finite values.
func FloatOr(p *float64, def float64) float64 {
	if p == nil || !finite(*p) {
		return def
	}
	return *p
}

// IntOr dereferences p, substituting def for nil.
func IntOr(p *int64, def int64) int64 {
	if p == nil {
		return def
	}
	return *p
}

// --------------------------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------------------------

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SortedExpiries returns a sorted, de-duplicated copy of expiries.
// YYYY-MM-DD strings sort chronologically.
func SortedExpiries(expiries []string) []string {
	seen := make(map[string]struct{}, len(expiries))
	out := make([]string, 0, len(expiries))
	for _, e := range expiries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// parseOptionalFloat treats "", "NaN", "null" and infinities as missing.
func parseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return Float(v), nil
}

// parseOptionalInt accepts integral floats ("12.0") since exports often
// write counts that way.
func parseOptionalInt(s string) (*int64, error) {
	f, err := parseOptionalFloat(s)
	if err != nil || f == nil {
		return nil, err
	}
	return Int(int64(*f)), nil
}
