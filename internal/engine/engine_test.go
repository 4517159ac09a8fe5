package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/delta-chain/internal/chain"
	"github.com/contactkeval/delta-chain/internal/data"
	"github.com/contactkeval/delta-chain/internal/pricing"
)

// fakeProvider serves fixed data and records what was asked for.
type fakeProvider struct {
	spot      float64
	spotErr   error
	expiries  []string
	calls     []data.ContractRow
	puts      []data.ContractRow
	spotCalls int
	chainFor  string
}

func (f *fakeProvider) Spot(ctx context.Context, underlying string) (float64, error) {
	f.spotCalls++
	return f.spot, f.spotErr
}

func (f *fakeProvider) Expiries(ctx context.Context, underlying string) ([]string, error) {
	return f.expiries, nil
}

func (f *fakeProvider) Chain(ctx context.Context, underlying, expiry string) ([]data.ContractRow, []data.ContractRow, error) {
	f.chainFor = expiry
	return f.calls, f.puts, nil
}

func (f *fakeProvider) Secondary() data.Provider { return nil }

func settingsAt(now time.Time) Settings {
	clock := pricing.DefaultClock()
	clock.Now = func() time.Time { return now }
	return Settings{Underlying: "SPX", Range: chain.DefaultRange(), Clock: clock}
}

func row(strike, bid, ask, iv float64) data.ContractRow {
	return data.ContractRow{
		Strike:            strike,
		Bid:               data.Float(bid),
		Ask:               data.Float(ask),
		ImpliedVolatility: data.Float(iv),
		Volume:            data.Int(100),
		OpenInterest:      data.Int(500),
	}
}

func TestRun_SameDayExpiry(t *testing.T) {
	now := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)
	prov := &fakeProvider{
		spot:     5000,
		expiries: []string{"2024-01-03", "2024-01-02"},
		calls:    []data.ContractRow{row(5010, 10, 12, 0.15), row(5300, 0.05, 0.1, 0.3), row(4990, 20, 22, 0.15)},
		puts:     []data.ContractRow{row(4990, 9, 11, 0.16), row(4500, 0.05, 0.1, 0.4)},
	}

	out, err := NewEngine(settingsAt(now), prov).Run(context.Background(), Request{DeltaMin: 0.03})
	require.NoError(t, err)

	res := out.Result
	assert.Equal(t, "2024-01-02", res.Expiry)
	assert.Equal(t, "2024-01-02", prov.chainFor)
	assert.False(t, out.ExpirySubstituted)
	assert.Equal(t, 5000.0, res.Spot)
	assert.Equal(t, 0.03, res.DeltaMin)
	assert.Equal(t, "2024-01-02T18:00:00Z", res.Timestamp)
	assert.InDelta(t, 2.0, out.HoursToExpiry(), 1e-9)

	// 5300 and 4500 lie outside the ±200 window
	require.Len(t, res.Calls, 2)
	assert.Equal(t, 4990.0, res.Calls[0].Strike)
	assert.Equal(t, 5010.0, res.Calls[1].Strike)
	require.Len(t, res.Puts, 1)
	assert.Negative(t, res.Puts[0].Delta)
}

func TestRun_SubstitutesEarliestExpiry(t *testing.T) {
	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	prov := &fakeProvider{spot: 5000, expiries: []string{"2024-01-01"}}

	out, err := NewEngine(settingsAt(now), prov).Run(context.Background(), Request{DeltaMin: 0.03})
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", out.Result.Expiry)
	assert.True(t, out.ExpirySubstituted)
	// the close has passed, so every delta is intrinsic
	assert.Equal(t, 0.0, out.YearsToExpiry)
	assert.NotNil(t, out.Result.Calls)
	assert.NotNil(t, out.Result.Puts)
}

func TestRun_EarliestIsPickedFromUnsortedList(t *testing.T) {
	now := time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC)
	prov := &fakeProvider{spot: 5000, expiries: []string{"2024-01-10", "2024-01-08", "2024-01-09"}}

	out, err := NewEngine(settingsAt(now), prov).Run(context.Background(), Request{DeltaMin: 0.03})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-08", out.Result.Expiry)
}

func TestRun_NoExpiries(t *testing.T) {
	prov := &fakeProvider{spot: 5000}

	out, err := NewEngine(settingsAt(time.Now()), prov).Run(context.Background(), Request{DeltaMin: 0.03})
	assert.ErrorIs(t, err, ErrNoExpiries)
	assert.Nil(t, out)
}

func TestRun_SpotOverrideSkipsProvider(t *testing.T) {
	now := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)
	prov := &fakeProvider{spotErr: errors.New("should not be called"), expiries: []string{"2024-01-02"}}
	spot := 4800.0

	out, err := NewEngine(settingsAt(now), prov).Run(context.Background(), Request{Spot: &spot, DeltaMin: 0.03})
	require.NoError(t, err)
	assert.Equal(t, 4800.0, out.Result.Spot)
	assert.Zero(t, prov.spotCalls)
}

func TestRun_SpotError(t *testing.T) {
	prov := &fakeProvider{spotErr: data.ErrNotFound, expiries: []string{"2024-01-02"}}

	_, err := NewEngine(settingsAt(time.Now()), prov).Run(context.Background(), Request{DeltaMin: 0.03})
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestRun_ExpectedMoveNarrowsWindow(t *testing.T) {
	now := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	var calls []data.ContractRow
	for k := 4800.0; k <= 5200; k += 5 {
		calls = append(calls, row(k, 1, 2, 0.6))
	}
	prov := &fakeProvider{spot: 5000, expiries: []string{"2024-01-02"}, calls: calls}
	em := 50.0

	out, err := NewEngine(settingsAt(now), prov).Run(context.Background(), Request{DeltaMin: 0.01, ExpectedMove: &em})
	require.NoError(t, err)

	assert.Equal(t, chain.Bounds{Lo: 4925, Hi: 5075}, out.Bounds)
	require.NotEmpty(t, out.Result.Calls)
	for _, c := range out.Result.Calls {
		assert.True(t, out.Bounds.Contains(c.Strike))
		assert.GreaterOrEqual(t, math.Abs(c.Delta), 0.01)
	}
}

func TestRun_WithSyntheticProvider(t *testing.T) {
	now := time.Date(2024, 1, 5, 17, 0, 0, 0, time.UTC)
	s := settingsAt(now)
	prov := data.NewSyntheticProvider(5000, s.Clock, 3)

	out, err := NewEngine(s, prov).Run(context.Background(), Request{DeltaMin: 0.03})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", out.Result.Expiry)
	assert.NotEmpty(t, out.Result.Calls)
	assert.NotEmpty(t, out.Result.Puts)
}
