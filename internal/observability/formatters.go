// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/keyword-miner/internal/db"
	"github.com/jonathan/keyword-miner/internal/ledger"
)

// boxWidth is the default width for formatted output boxes
const boxWidth = 60

// Printer writes boxed summaries for terminal output.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// PrintBalance outputs an account's credit balance.
func (p *Printer) PrintBalance(accountID uuid.UUID, b *ledger.Balance) {
	if b == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Account:    %s\n", accountID))
	sb.WriteString(fmt.Sprintf("Total:      %d\n", b.Total))
	sb.WriteString(fmt.Sprintf("Used:       %d\n", b.Used))
	sb.WriteString(fmt.Sprintf("Remaining:  %d", b.Remaining))

	p.printBox("CREDIT BALANCE", sb.String())
}

// PrintTransactions outputs transactions newest first, as the store returns them.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintTransactions(txns []db.CreditTransaction) {
	if len(txns) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "NO TRANSACTIONS")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	for i, t := range txns {
		sb.WriteString(fmt.Sprintf("%s  %+6d  %6d -> %-6d\n",
			t.CreatedAt.Format("2006-01-02 15:04"), t.Delta, t.BalanceBefore, t.BalanceAfter))
		label := t.Description
		if t.ModeID != "" {
			label = t.ModeID + ": " + label
		}
		sb.WriteString("  " + truncate(label, boxWidth-6))
		if i < len(txns)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(fmt.Sprintf("TRANSACTIONS (%d)", len(txns)), sb.String())
}
