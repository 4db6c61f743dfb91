package ledger

import (
	"fmt"
	"io"
	"strings"
)

const (
	reportTitle  = "=== Order Book ==="
	columnHeader = "  ID    | Amount   | Price"
	columnRule   = "  ------|----------|----------"
)

// Render returns the textual report: bids under "Buy Orders", then asks
// under "Sell Orders", each in submission order. It does not modify the ledger.
func (l *Ledger) Render() string {
	var b strings.Builder
	writeReport(&b, l.bids, l.asks)
	return b.String()
}

// WriteTo writes the same report as Render.
func (l *Ledger) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, l.Render())
	return int64(n), err
}

// Render returns the report of the ledger the snapshot was taken from.
func (s Snapshot) Render() string {
	var b strings.Builder
	writeReport(&b, s.Bids, s.Asks)
	return b.String()
}

func (s Snapshot) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.Render())
	return int64(n), err
}

func writeReport(b *strings.Builder, bids, asks []Order) {
	b.WriteString(reportTitle)
	b.WriteString("\n")
	writeSide(b, Bid, bids)
	writeSide(b, Ask, asks)
	b.WriteString("\n")
}

func writeSide(b *strings.Builder, side Side, orders []Order) {
	label := "Buy"
	if side == Ask {
		label = "Sell"
	}
	fmt.Fprintf(b, "\n%s Orders:\n", label)

	if len(orders) == 0 {
		fmt.Fprintf(b, "  No %s orders available.\n", strings.ToLower(label))
		return
	}

	b.WriteString(columnHeader)
	b.WriteString("\n")
	b.WriteString(columnRule)
	b.WriteString("\n")
	for _, o := range orders {
		fmt.Fprintf(b, "  %4d  | %8.2f | %8.2f\n", o.ID, o.Amount, o.Price)
	}
}
