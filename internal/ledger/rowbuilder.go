package ledger

import "github.com/cierrelabs/cierrebot/internal/normalize"

// RowWidth returns the fixed width of a settlement row for the given number
// of teams: date, five figures per team, then loans (2), expenses, total
// net, carry-over, total due, settled, shortfall, notes.
func RowWidth(teams int) int {
	return 1 + 5*teams + 8
}

// BuildRow assembles the ordered field vector persisted for one settlement.
// Column order is stable: downstream sheet formulas depend on it.
func BuildRow(s *Settlement) []string {
	row := make([]string, 0, RowWidth(len(s.Teams)))
	row = append(row, s.DateKey)
	for _, t := range s.Teams {
		row = append(row,
			normalize.FormatAmount(t.Sale),
			normalize.FormatAmount(t.Deposits),
			normalize.FormatAmount(t.Withdrawals),
			normalize.FormatAmount(t.Commission),
			normalize.FormatAmount(t.Net),
		)
	}
	row = append(row,
		normalize.FormatAmount(s.LoansRequested),
		normalize.FormatAmount(s.LoansReturned),
		normalize.FormatAmount(s.Expenses),
		normalize.FormatAmount(s.TotalNet),
		normalize.FormatAmount(s.CarryOver),
		normalize.FormatAmount(s.TotalDue),
		normalize.FormatAmount(s.AmountSettled),
		normalize.FormatAmount(s.Shortfall),
		s.Notes,
	)
	return row
}
