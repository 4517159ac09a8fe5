package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contactkeval/delta-chain/internal/chain"
	"github.com/contactkeval/delta-chain/internal/data"
	"github.com/contactkeval/delta-chain/internal/logger"
	"github.com/contactkeval/delta-chain/internal/pricing"
)

// ErrNoExpiries means the provider listed no expirations at all.
var ErrNoExpiries = errors.New("no expirations available")

// Settings are the fixed inputs of the pipeline.
type Settings struct {
	Underlying   string
	RiskFreeRate float64
	Range        chain.RangeConfig
	Clock        pricing.Clock
}

// Request carries the per-run caller inputs.
type Request struct {
	Spot         *float64 // override, fetched from the provider when nil
	DeltaMin     float64
	ExpectedMove *float64 // narrows the strike window when set
}

// Outcome is a finished run: the artifact plus what the summary needs.
type Outcome struct {
	Result            *chain.Result
	Bounds            chain.Bounds
	YearsToExpiry     float64
	ExpirySubstituted bool
}

// HoursToExpiry is YearsToExpiry in hours.
func (o *Outcome) HoursToExpiry() float64 {
	return pricing.Hours(o.YearsToExpiry)
}

type Engine struct {
	settings Settings
	prov     data.Provider
}

func NewEngine(settings Settings, prov data.Provider) *Engine {
	return &Engine{settings: settings, prov: prov}
}

// Run resolves spot and expiry, fetches the chain and filters both sides.
// Nothing is written here; persisting the result is up to the caller.
func (e *Engine) Run(ctx context.Context, req Request) (*Outcome, error) {
	s := e.settings

	spot, err := e.resolveSpot(ctx, req.Spot)
	if err != nil {
		return nil, err
	}
	logger.Infof("spot: %v", spot)

	expiry, substituted, err := e.resolveExpiry(ctx)
	if err != nil {
		return nil, err
	}
	logger.Infof("expiry: %s", expiry)

	callRows, putRows, err := e.prov.Chain(ctx, s.Underlying, expiry)
	if err != nil {
		return nil, fmt.Errorf("fetching chain: %w", err)
	}

	years, err := s.Clock.YearsToExpiry(expiry)
	if err != nil {
		return nil, err
	}
	logger.Infof("time to expiry: %.1f hours", pricing.Hours(years))

	params := chain.Params{
		Spot:          spot,
		YearsToExpiry: years,
		RiskFreeRate:  s.RiskFreeRate,
		Bounds:        chain.StrikeBounds(spot, req.ExpectedMove, s.Range),
		DeltaMin:      req.DeltaMin,
	}
	logger.Debugf("strike window [%.2f, %.2f], %d call rows, %d put rows",
		params.Bounds.Lo, params.Bounds.Hi, len(callRows), len(putRows))

	calls, err := chain.Process(callRows, pricing.Call, params)
	if err != nil {
		return nil, err
	}
	puts, err := chain.Process(putRows, pricing.Put, params)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Result:            chain.NewResult(e.now(), spot, expiry, req.DeltaMin, calls, puts),
		Bounds:            params.Bounds,
		YearsToExpiry:     years,
		ExpirySubstituted: substituted,
	}, nil
}

func (e *Engine) resolveSpot(ctx context.Context, override *float64) (float64, error) {
	if override != nil {
		return *override, nil
	}
	spot, err := e.prov.Spot(ctx, e.settings.Underlying)
	if err != nil {
		return 0, fmt.Errorf("fetching spot: %w", err)
	}
	return spot, nil
}

// resolveExpiry picks today's expiry when listed, otherwise the earliest one.
func (e *Engine) resolveExpiry(ctx context.Context) (string, bool, error) {
	listed, err := e.prov.Expiries(ctx, e.settings.Underlying)
	if err != nil {
		return "", false, fmt.Errorf("listing expiries: %w", err)
	}

	expiries := data.SortedExpiries(listed)
	if len(expiries) == 0 {
		return "", false, ErrNoExpiries
	}

	today := e.now().Format("2006-01-02")
	for _, exp := range expiries {
		if exp == today {
			return today, false, nil
		}
	}

	logger.Infof("no 0DTE found, using nearest: %s", expiries[0])
	return expiries[0], true, nil
}

func (e *Engine) now() time.Time {
	if e.settings.Clock.Now == nil {
		return time.Now()
	}
	return e.settings.Clock.Now()
}
