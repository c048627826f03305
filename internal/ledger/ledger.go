// Package ledger models the external tabular ledger: the Store collaborator
// port, date-keyed row resolution, and the fixed-width settlement row layout.
package ledger

import "context"

// Store is the external spreadsheet collaborator. No transactional
// semantics are assumed across calls.
type Store interface {
	// ReadRange returns the cell matrix for an A1-style range. Trailing
	// blank rows may be omitted by the backend.
	ReadRange(ctx context.Context, sheet, rangeSpec string) ([][]string, error)
	// WriteCell sets a single cell.
	WriteCell(ctx context.Context, sheet, cellRef, value string) error
	// ClearCell blanks a single cell.
	ClearCell(ctx context.Context, sheet, cellRef string) error
	// WriteRow writes orderedValues starting at column A of rowIndex (1-based).
	WriteRow(ctx context.Context, sheet string, rowIndex int, values []string) error
}

// Layout describes where settlement data lives inside the sheet.
type Layout struct {
	Sheet           string
	FirstDataRow    int    // 1-based row of the first settlement row
	DateColumn      string // column letter holding the canonical date key
	ShortfallColumn string // column letter holding the pending/shortfall amount
}

// TeamResult is one team's figures for a settlement.
type TeamResult struct {
	Name        string
	Sale        float64
	Deposits    float64
	Withdrawals float64
	Commission  float64
	Net         float64
}

// Settlement is the complete result of one closing run.
type Settlement struct {
	DateKey        string
	Teams          []TeamResult
	LoansRequested float64
	LoansReturned  float64
	Expenses       float64
	AmountSettled  float64
	Notes          string

	TotalNet  float64
	CarryOver float64
	TotalDue  float64
	Shortfall float64
}
