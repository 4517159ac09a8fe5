package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/contactkeval/delta-chain/internal/chain"
	"github.com/contactkeval/delta-chain/internal/pricing"
)

// csvRow flattens a contract with its side for the CSV export.
type csvRow struct {
	Type   pricing.OptionType `csv:"type"`
	Expiry string             `csv:"expiry"`
	chain.Contract
}

// WriteJSON writes the result as indented JSON, replacing path atomically.
func WriteJSON(res *chain.Result, path string) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, append(b, '\n'))
}

// WriteCSV writes calls then puts, one contract per row.
func WriteCSV(res *chain.Result, path string) error {
	rows := make([]*csvRow, 0, len(res.Calls)+len(res.Puts))
	for _, c := range res.Calls {
		rows = append(rows, &csvRow{Type: pricing.Call, Expiry: res.Expiry, Contract: c})
	}
	for _, p := range res.Puts {
		rows = append(rows, &csvRow{Type: pricing.Put, Expiry: res.Expiry, Contract: p})
	}

	b, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return writeAtomic(path, b)
}

// WriteSnapshot keeps a timestamped copy under dir/<YYYY-MM-DD>/ and
// returns the file written.
func WriteSnapshot(res *chain.Result, dir string, at time.Time) (string, error) {
	path := filepath.Join(dir, at.Format("2006-01-02"), "chain_"+at.Format("150405")+".json")
	if err := WriteJSON(res, path); err != nil {
		return "", err
	}
	return path, nil
}

// writeAtomic writes to a temp file in the target directory and renames it
// over path, so readers never see a partial file.
func writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
