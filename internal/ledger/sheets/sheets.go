// Package sheets implements the ledger store against the Google Sheets API.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/cierrelabs/cierrebot/internal/ledger"
)

// Store talks to one spreadsheet.
type Store struct {
	svc           *sheets.Service
	spreadsheetID string
}

var _ ledger.Store = (*Store)(nil)

// New authenticates with a service-account key (inline JSON or a file path)
// and binds to the spreadsheet.
func New(ctx context.Context, spreadsheetID, credentialsJSON, credentialsFile string) (*Store, error) {
	var opt option.ClientOption
	switch {
	case credentialsFile != "":
		opt = option.WithCredentialsFile(credentialsFile)
	case credentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(credentialsJSON))
	default:
		return nil, fmt.Errorf("sheets: no credentials configured")
	}
	svc, err := sheets.NewService(ctx, opt, option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return &Store{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// ReadRange returns the cell matrix for an A1-style range. The API omits
// trailing blank rows and cells.
func (s *Store) ReadRange(ctx context.Context, sheet, rangeSpec string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, fmt.Sprintf("%s!%s", sheet, rangeSpec)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s!%s: %w", sheet, rangeSpec, err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		out[i] = cells
	}
	return out, nil
}

// WriteCell sets a single cell, keeping the value as typed (RAW input).
func (s *Store) WriteCell(ctx context.Context, sheet, cellRef, value string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, fmt.Sprintf("%s!%s", sheet, cellRef), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, cellRef, err)
	}
	return nil
}

// ClearCell blanks a single cell.
func (s *Store) ClearCell(ctx context.Context, sheet, cellRef string) error {
	_, err := s.svc.Spreadsheets.Values.
		Clear(s.spreadsheetID, fmt.Sprintf("%s!%s", sheet, cellRef), &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s!%s: %w", sheet, cellRef, err)
	}
	return nil
}

// WriteRow writes values starting at column A of rowIndex (1-based).
func (s *Store) WriteRow(ctx context.Context, sheet string, rowIndex int, values []string) error {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, fmt.Sprintf("%s!A%d", sheet, rowIndex), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write row %d of %s: %w", rowIndex, sheet, err)
	}
	return nil
}
