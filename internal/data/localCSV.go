package data

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/contactkeval/delta-chain/internal/logger"
)

// localCSVDataProvider implements Data Provider from local CSV exports.
//
// Expected layout inside dir:
//
//	spot.csv                       underlying,last_price
//	<UNDERLYING>_<YYYY-MM-DD>_calls.csv
//	<UNDERLYING>_<YYYY-MM-DD>_puts.csv
//
// Chain files use the column names strike, bid, ask, impliedVolatility,
// volume and openInterest. Empty or NaN cells are treated as missing.
type localCSVDataProvider struct {
	dir       string
	secondary Provider
}

type csvSpotRow struct {
	Underlying string  `csv:"underlying"`
	LastPrice  float64 `csv:"last_price"`
}

type csvChainRow struct {
	Strike            string `csv:"strike"`
	Bid               string `csv:"bid"`
	Ask               string `csv:"ask"`
	ImpliedVolatility string `csv:"impliedVolatility"`
	Volume            string `csv:"volume"`
	OpenInterest      string `csv:"openInterest"`
}

// NewLocalCSVDataProvider convenience constructor. secondary may be nil.
func NewLocalCSVDataProvider(dir string, secondary Provider) *localCSVDataProvider {
	return &localCSVDataProvider{dir: dir, secondary: secondary}
}

func (localCSVDataProv *localCSVDataProvider) Secondary() Provider {
	return localCSVDataProv.secondary
}

func (localCSVDataProv *localCSVDataProvider) Spot(ctx context.Context, underlying string) (float64, error) {
	var rows []csvSpotRow
	if err := localCSVDataProv.readFile("spot.csv", &rows); err != nil {
		if errors.Is(err, fs.ErrNotExist) && localCSVDataProv.secondary != nil {
			return localCSVDataProv.secondary.Spot(ctx, underlying)
		}
		return 0, err
	}

	for _, r := range rows {
		if strings.EqualFold(strings.TrimSpace(r.Underlying), underlying) && r.LastPrice > 0 {
			return r.LastPrice, nil
		}
	}

	if localCSVDataProv.secondary != nil {
		return localCSVDataProv.secondary.Spot(ctx, underlying)
	}
	return 0, fmt.Errorf("%w: no spot for %s in %s", ErrNotFound, underlying, localCSVDataProv.dir)
}

// Expiries derives the expiry list from the call files present in dir.
func (localCSVDataProv *localCSVDataProvider) Expiries(ctx context.Context, underlying string) ([]string, error) {
	prefix := fileKey(underlying) + "_"
	matches, err := filepath.Glob(filepath.Join(localCSVDataProv.dir, prefix+"*_calls.csv"))
	if err != nil {
		return nil, err
	}

	var expiries []string
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), prefix), "_calls.csv")
		expiries = append(expiries, name)
	}

	if len(expiries) == 0 && localCSVDataProv.secondary != nil {
		logger.Debugf("no local expiries for %s, delegating to secondary", underlying)
		return localCSVDataProv.secondary.Expiries(ctx, underlying)
	}
	return SortedExpiries(expiries), nil
}

func (localCSVDataProv *localCSVDataProvider) Chain(ctx context.Context, underlying, expiry string) ([]ContractRow, []ContractRow, error) {
	base := fileKey(underlying) + "_" + expiry

	calls, err := localCSVDataProv.readChain(base + "_calls.csv")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && localCSVDataProv.secondary != nil {
			return localCSVDataProv.secondary.Chain(ctx, underlying, expiry)
		}
		return nil, nil, err
	}

	puts, err := localCSVDataProv.readChain(base + "_puts.csv")
	if err != nil {
		return nil, nil, err
	}
	return calls, puts, nil
}

func (localCSVDataProv *localCSVDataProvider) readChain(name string) ([]ContractRow, error) {
	var raw []csvChainRow
	if err := localCSVDataProv.readFile(name, &raw); err != nil {
		return nil, err
	}

	rows := make([]ContractRow, 0, len(raw))
	for i, r := range raw {
		row, err := r.toRow()
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", name, i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (localCSVDataProv *localCSVDataProvider) readFile(name string, out any) error {
	f, err := os.Open(filepath.Join(localCSVDataProv.dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}

func (r csvChainRow) toRow() (ContractRow, error) {
	strike, err := strconv.ParseFloat(strings.TrimSpace(r.Strike), 64)
	if err != nil {
		return ContractRow{}, fmt.Errorf("strike: %w", err)
	}

	row := ContractRow{Strike: strike}
	if row.Bid, err = parseOptionalFloat(r.Bid); err != nil {
		return ContractRow{}, fmt.Errorf("bid: %w", err)
	}
	if row.Ask, err = parseOptionalFloat(r.Ask); err != nil {
		return ContractRow{}, fmt.Errorf("ask: %w", err)
	}
	if row.ImpliedVolatility, err = parseOptionalFloat(r.ImpliedVolatility); err != nil {
		return ContractRow{}, fmt.Errorf("impliedVolatility: %w", err)
	}
	if row.Volume, err = parseOptionalInt(r.Volume); err != nil {
		return ContractRow{}, fmt.Errorf("volume: %w", err)
	}
	if row.OpenInterest, err = parseOptionalInt(r.OpenInterest); err != nil {
		return ContractRow{}, fmt.Errorf("openInterest: %w", err)
	}
	return row, nil
}

// fileKey strips characters such as "^" and ":" from ticker symbols.
func fileKey(underlying string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(underlying) {
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}
