// Package chain filters raw option chain rows by strike window and delta.
package chain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/contactkeval/delta-chain/internal/data"
	"github.com/contactkeval/delta-chain/internal/pricing"
)

// Contract is one retained row of the filtered chain.
type Contract struct {
	Strike float64 `json:"strike" csv:"strike"`
	Bid    float64 `json:"bid" csv:"bid"`
	Ask    float64 `json:"ask" csv:"ask"`
	Mid    float64 `json:"mid" csv:"mid"`
	IV     float64 `json:"iv" csv:"iv"`
	Delta  float64 `json:"delta" csv:"delta"`
	Volume int64   `json:"volume" csv:"volume"`
	OI     int64   `json:"oi" csv:"oi"`
}

// Result is the persisted artifact of one run.
type Result struct {
	Timestamp string     `json:"timestamp"`
	Spot      float64    `json:"spot"`
	Expiry    string     `json:"expiry"`
	DeltaMin  float64    `json:"delta_min"`
	Calls     []Contract `json:"calls"`
	Puts      []Contract `json:"puts"`
}

// NewResult stamps a result with the write instant in UTC.
func NewResult(at time.Time, spot float64, expiry string, deltaMin float64, calls, puts []Contract) *Result {
	if calls == nil {
		calls = []Contract{}
	}
	if puts == nil {
		puts = []Contract{}
	}
	return &Result{
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Spot:      spot,
		Expiry:    expiry,
		DeltaMin:  deltaMin,
		Calls:     calls,
		Puts:      puts,
	}
}

// Params carries everything Process needs besides the rows.
type Params struct {
	Spot          float64
	YearsToExpiry float64
	RiskFreeRate  float64
	Bounds        Bounds
	DeltaMin      float64
}

// Process filters rows of one option type and returns them sorted by strike.
//
// Rows outside Bounds are skipped, missing fields count as zero, and rows
// whose |delta| is below DeltaMin are dropped after delta is computed.
// An error is returned only when the pricing model rejects its inputs.
func Process(rows []data.ContractRow, optType pricing.OptionType, p Params) ([]Contract, error) {
	out := make([]Contract, 0, len(rows))

	for _, r := range rows {
		if !p.Bounds.Contains(r.Strike) {
			continue
		}

		iv := data.FloatOr(r.ImpliedVolatility, 0)
		bid := data.FloatOr(r.Bid, 0)
		ask := data.FloatOr(r.Ask, 0)

		delta, err := pricing.Delta(optType, p.Spot, r.Strike, iv, p.YearsToExpiry, p.RiskFreeRate)
		if err != nil {
			return nil, fmt.Errorf("%s strike %v: %w", optType, r.Strike, err)
		}

		if math.Abs(delta) < p.DeltaMin {
			continue
		}

		out = append(out, Contract{
			Strike: r.Strike,
			Bid:    bid,
			Ask:    ask,
			Mid:    pricing.Round((bid+ask)/2, 2),
			IV:     pricing.Round(iv, 4),
			Delta:  delta,
			Volume: data.IntOr(r.Volume, 0),
			OI:     data.IntOr(r.OpenInterest, 0),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out, nil
}
