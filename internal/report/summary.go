package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/contactkeval/delta-chain/internal/chain"
)

// Summary is the human-readable digest printed after a run.
type Summary struct {
	Result            *chain.Result
	HoursToExpiry     float64
	ExpirySubstituted bool
	OutputPath        string
}

// PrintSummary renders the run digest as a two-column table.
func PrintSummary(w io.Writer, s Summary) {
	res := s.Result

	expiry := res.Expiry
	if s.ExpirySubstituted {
		expiry += " (nearest, no 0DTE)"
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk([][]string{
		{"Spot", fmt.Sprintf("%.2f", res.Spot)},
		{"Expiry", expiry},
		{"Time to expiry", fmt.Sprintf("%.1f hours", s.HoursToExpiry)},
		{"Calls", fmt.Sprintf("%d", len(res.Calls))},
		{"Puts", fmt.Sprintf("%d", len(res.Puts))},
		{"Delta filter", fmt.Sprintf("|delta| >= %g", res.DeltaMin)},
		{"Output", s.OutputPath},
	})
	table.Render()
}
