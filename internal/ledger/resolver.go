package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/cierrelabs/cierrebot/internal/normalize"
)

// RowResolver maps canonical date keys to row numbers in the ledger.
//
// NextRow is not atomic: two callers resolving the same not-yet-existing key
// with no intervening append will both get the same row number. Callers must
// serialize writes per date key; the router's per-conversation lanes do that
// for the wizard's own writes, but nothing protects two different
// conversations racing on the same date.
type RowResolver struct {
	store  Store
	layout Layout
}

// NewRowResolver returns a resolver over the given store and layout.
func NewRowResolver(store Store, layout Layout) *RowResolver {
	return &RowResolver{store: store, layout: layout}
}

// FindRow scans the date column for the canonical key. The returned row is
// the 1-based sheet row; found is false when the key is absent.
func (r *RowResolver) FindRow(ctx context.Context, key string) (row int, found bool, err error) {
	cells, err := r.dateColumn(ctx)
	if err != nil {
		return 0, false, err
	}
	for i, cell := range cells {
		if normalize.SameDateKey(cell, key) {
			return r.layout.FirstDataRow + i, true, nil
		}
	}
	return 0, false, nil
}

// NextRow returns the row for key if it exists, otherwise one past the last
// non-blank row (the first data row when the ledger is empty). Idempotent as
// a read: repeated calls with no intervening append return the same row.
func (r *RowResolver) NextRow(ctx context.Context, key string) (int, error) {
	cells, err := r.dateColumn(ctx)
	if err != nil {
		return 0, err
	}
	last := -1
	for i, cell := range cells {
		if normalize.SameDateKey(cell, key) {
			return r.layout.FirstDataRow + i, nil
		}
		if strings.TrimSpace(cell) != "" {
			last = i
		}
	}
	return r.layout.FirstDataRow + last + 1, nil
}

// LastRow returns the last non-blank data row, or found=false when the
// ledger is empty.
func (r *RowResolver) LastRow(ctx context.Context) (row int, found bool, err error) {
	cells, err := r.dateColumn(ctx)
	if err != nil {
		return 0, false, err
	}
	for i, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			row = r.layout.FirstDataRow + i
			found = true
		}
	}
	return row, found, nil
}

// LastPending returns the shortfall amount of the most recent prior
// settlement, skipping the row for excludeKey so a re-run of the same date
// does not read its own earlier result. Blank or unparseable cells degrade
// to 0 with found=false.
func (r *RowResolver) LastPending(ctx context.Context, excludeKey string) (amount float64, found bool, err error) {
	dates, err := r.dateColumn(ctx)
	if err != nil {
		return 0, false, err
	}
	lastRow := 0
	for i, cell := range dates {
		if strings.TrimSpace(cell) == "" || normalize.SameDateKey(cell, excludeKey) {
			continue
		}
		lastRow = r.layout.FirstDataRow + i
	}
	if lastRow == 0 {
		return 0, false, nil
	}

	ref := fmt.Sprintf("%s%d:%s%d", r.layout.ShortfallColumn, lastRow, r.layout.ShortfallColumn, lastRow)
	cells, err := r.store.ReadRange(ctx, r.layout.Sheet, ref)
	if err != nil {
		return 0, false, err
	}
	if len(cells) == 0 || len(cells[0]) == 0 {
		return 0, false, nil
	}
	v, perr := normalize.Amount(cells[0][0])
	if perr != nil {
		return 0, false, nil
	}
	return v, true, nil
}

func (r *RowResolver) dateColumn(ctx context.Context) ([]string, error) {
	spec := fmt.Sprintf("%s%d:%s", r.layout.DateColumn, r.layout.FirstDataRow, r.layout.DateColumn)
	rows, err := r.store.ReadRange(ctx, r.layout.Sheet, spec)
	if err != nil {
		return nil, fmt.Errorf("read date column: %w", err)
	}
	cells := make([]string, len(rows))
	for i, row := range rows {
		if len(row) > 0 {
			cells[i] = row[0]
		}
	}
	return cells, nil
}
