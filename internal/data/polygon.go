package data

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/contactkeval/delta-chain/internal/logger"
)

// polygonDataProvider implements Data Provider using the Polygon.io client SDK.
type polygonDataProvider struct {
	client       *polygon.Client
	expiryWindow time.Duration
	now          func() time.Time
	secondary    Provider
}

func NewPolygonDataProvider(apiKey string) *polygonDataProvider {
	logger.Infof("initializing Polygon data provider")
	return &polygonDataProvider{
		client:       polygon.New(apiKey),
		expiryWindow: 14 * 24 * time.Hour,
		now:          time.Now,
	}
}

// WithExpiryWindow bounds how far ahead Expiries looks.
func (polygonDataProv *polygonDataProvider) WithExpiryWindow(d time.Duration) *polygonDataProvider {
	polygonDataProv.expiryWindow = d
	return polygonDataProv
}

func (polygonDataProv *polygonDataProvider) Secondary() Provider {
	return polygonDataProv.secondary
}

// Spot reads the underlying value attached to the first chain snapshot item.
func (polygonDataProv *polygonDataProvider) Spot(ctx context.Context, underlying string) (float64, error) {
	params := models.ListOptionsChainParams{UnderlyingAsset: underlying}.WithLimit(1)

	iter := polygonDataProv.client.ListOptionsChainSnapshot(ctx, params)
	if iter.Next() {
		asset := iter.Item().UnderlyingAsset
		if asset.Value > 0 {
			return asset.Value, nil
		}
		if asset.Price > 0 {
			return asset.Price, nil
		}
	}
	if err := iter.Err(); err != nil {
		if polygonDataProv.secondary != nil {
			return polygonDataProv.secondary.Spot(ctx, underlying)
		}
		return 0, fmt.Errorf("polygon spot %s: %w", underlying, err)
	}
	if polygonDataProv.secondary != nil {
		return polygonDataProv.secondary.Spot(ctx, underlying)
	}
	return 0, fmt.Errorf("%w: no underlying price for %s", ErrNotFound, underlying)
}

func (polygonDataProv *polygonDataProvider) Expiries(ctx context.Context, underlying string) ([]string, error) {
	now := polygonDataProv.now()
	params := models.ListOptionsContractsParams{}.
		WithUnderlyingTicker(models.EQ, underlying).
		WithExpirationDate(models.GTE, models.Date(now)).
		WithExpirationDate(models.LTE, models.Date(now.Add(polygonDataProv.expiryWindow))).
		WithLimit(1000)

	var expiries []string
	iter := polygonDataProv.client.ListOptionsContracts(ctx, params)
	for iter.Next() {
		expiries = append(expiries, time.Time(iter.Item().ExpirationDate).Format("2006-01-02"))
	}
	if err := iter.Err(); err != nil {
		if polygonDataProv.secondary != nil {
			return polygonDataProv.secondary.Expiries(ctx, underlying)
		}
		return nil, fmt.Errorf("polygon expiries %s: %w", underlying, err)
	}

	return SortedExpiries(expiries), nil
}

func (polygonDataProv *polygonDataProvider) Chain(ctx context.Context, underlying, expiry string) ([]ContractRow, []ContractRow, error) {
	day, err := time.Parse("2006-01-02", expiry)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid expiry %q: %w", expiry, err)
	}

	params := models.ListOptionsChainParams{UnderlyingAsset: underlying}.
		WithExpirationDate(models.EQ, models.Date(day)).
		WithLimit(250)

	var calls, puts []ContractRow
	iter := polygonDataProv.client.ListOptionsChainSnapshot(ctx, params)
	for iter.Next() {
		s := iter.Item()
		// the SDK zero-fills absent fields, so every value is taken as present
		row := ContractRow{
			Strike:            s.Details.StrikePrice,
			Bid:               Float(s.LastQuote.Bid),
			Ask:               Float(s.LastQuote.Ask),
			ImpliedVolatility: Float(s.ImpliedVolatility),
			Volume:            Int(int64(s.Day.Volume)),
			OpenInterest:      Int(int64(s.OpenInterest)),
		}
		switch s.Details.ContractType {
		case "call":
			calls = append(calls, row)
		case "put":
			puts = append(puts, row)
		}
	}
	if err := iter.Err(); err != nil {
		if polygonDataProv.secondary != nil {
			return polygonDataProv.secondary.Chain(ctx, underlying, expiry)
		}
		return nil, nil, fmt.Errorf("polygon chain %s %s: %w", underlying, expiry, err)
	}

	logger.Debugf("polygon chain %s %s: %d calls, %d puts", underlying, expiry, len(calls), len(puts))
	return calls, puts, nil
}
