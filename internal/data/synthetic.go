package data

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/contactkeval/delta-chain/internal/pricing"
)

// synthDataProvider implements Data Provider generating a synthetic chain.
// Quotes are Black-Scholes prices over a simple volatility smile; a few
// rows have fields left empty the way live feeds sometimes do.
type synthDataProvider struct {
	spot       float64
	strikeStep float64
	width      float64
	baseVol    float64
	clock      pricing.Clock
	seed       int64
	secondary  Provider
}

func NewSyntheticProvider(spot float64, clock pricing.Clock, seed int64) *synthDataProvider {
	return &synthDataProvider{
		spot:       spot,
		strikeStep: 5,
		width:      300,
		baseVol:    0.14,
		clock:      clock,
		seed:       seed,
	}
}

func (synthDataProv *synthDataProvider) Secondary() Provider {
	return synthDataProv.secondary
}

func (synthDataProv *synthDataProvider) Spot(ctx context.Context, underlying string) (float64, error) {
	if synthDataProv.spot <= 0 {
		return 0, fmt.Errorf("%w: synthetic spot not configured", ErrNotFound)
	}
	return synthDataProv.spot, nil
}

// Expiries lists today and the next four weekdays.
func (synthDataProv *synthDataProvider) Expiries(ctx context.Context, underlying string) ([]string, error) {
	day := synthDataProv.now()
	var out []string
	for len(out) < 5 {
		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			out = append(out, day.Format("2006-01-02"))
		}
		day = day.AddDate(0, 0, 1)
	}
	return out, nil
}

func (synthDataProv *synthDataProvider) Chain(ctx context.Context, underlying, expiry string) ([]ContractRow, []ContractRow, error) {
	years, err := synthDataProv.clock.YearsToExpiry(expiry)
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewSource(synthDataProv.seed))
	spot := synthDataProv.spot
	step := synthDataProv.strikeStep
	first := math.Ceil((spot-synthDataProv.width)/step) * step

	var calls, puts []ContractRow
	for i, strike := 0, first; strike <= spot+synthDataProv.width; i, strike = i+1, strike+step {
		if strike <= 0 {
			continue
		}
		iv := synthDataProv.smile(strike)
		calls = append(calls, synthDataProv.row(rng, i, pricing.Call, strike, iv, years))
		puts = append(puts, synthDataProv.row(rng, i, pricing.Put, strike, iv, years))
	}
	return calls, puts, nil
}

// smile skews volatility higher for low strikes.
func (synthDataProv *synthDataProvider) smile(strike float64) float64 {
	m := math.Log(strike / synthDataProv.spot)
	return math.Max(0.05, synthDataProv.baseVol*(1-4*m)+6*m*m)
}

func (synthDataProv *synthDataProvider) row(rng *rand.Rand, i int, optType pricing.OptionType, strike, iv, years float64) ContractRow {
	price := pricing.Price(optType, synthDataProv.spot, strike, iv, years, 0)
	spread := 0.05 + 0.02*price
	row := ContractRow{
		Strike:            strike,
		Bid:               Float(pricing.Round(math.Max(0, price-spread/2), 2)),
		Ask:               Float(pricing.Round(price+spread/2, 2)),
		ImpliedVolatility: Float(pricing.Round(iv, 4)),
		Volume:            Int(rng.Int63n(5000)),
		OpenInterest:      Int(rng.Int63n(20000)),
	}
	if i%11 == 7 {
		row.ImpliedVolatility = nil
	}
	if i%13 == 5 {
		row.Volume = nil
		row.Bid = nil
	}
	return row
}

func (synthDataProv *synthDataProvider) now() time.Time {
	if synthDataProv.clock.Now == nil {
		return time.Now()
	}
	return synthDataProv.clock.Now()
}
