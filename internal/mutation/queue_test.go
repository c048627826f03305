package mutation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cierrelabs/cierrebot/internal/ledger"
)

type fakeLedger struct {
	dates     []string
	writes    []string
	failCells map[string]bool
}

func (f *fakeLedger) ReadRange(_ context.Context, _ string, _ string) ([][]string, error) {
	out := make([][]string, len(f.dates))
	for i, d := range f.dates {
		out[i] = []string{d}
	}
	return out, nil
}

func (f *fakeLedger) WriteCell(_ context.Context, sheet, cellRef, value string) error {
	if f.failCells[cellRef] {
		return fmt.Errorf("write %s: backend unavailable", cellRef)
	}
	f.writes = append(f.writes, fmt.Sprintf("set %s!%s=%s", sheet, cellRef, value))
	return nil
}

func (f *fakeLedger) ClearCell(_ context.Context, sheet, cellRef string) error {
	f.writes = append(f.writes, fmt.Sprintf("clear %s!%s", sheet, cellRef))
	return nil
}

func (f *fakeLedger) WriteRow(context.Context, string, int, []string) error { return nil }

func newTestQueue(led *fakeLedger) *Queue {
	layout := ledger.Layout{Sheet: "Cierres", FirstDataRow: 3, DateColumn: "A", ShortfallColumn: "K"}
	return NewQueue(led, ledger.NewRowResolver(led, layout), nil)
}

func TestProposeRendersPreview(t *testing.T) {
	q := newTestQueue(&fakeLedger{})
	preview := q.Propose("chat1", []Mutation{
		{Sheet: "Cierres", Cell: "B7", Value: "1500", Provenance: "recibo 01/02"},
		{Sheet: "Cierres", Cell: "C7", Delete: true},
	})

	if !strings.Contains(preview, "1. ESCRIBIR Cierres!B7 = 1500 (recibo 01/02)") {
		t.Fatalf("preview missing write line:\n%s", preview)
	}
	if !strings.Contains(preview, "2. BORRAR Cierres!C7") {
		t.Fatalf("preview missing delete line:\n%s", preview)
	}
	if !q.HasPending("chat1") {
		t.Fatal("proposal not pending")
	}
}

func TestLastProposalWins(t *testing.T) {
	led := &fakeLedger{}
	q := newTestQueue(led)
	q.Propose("chat1", []Mutation{{Sheet: "Cierres", Cell: "B7", Value: "1"}})
	q.Propose("chat1", []Mutation{{Sheet: "Cierres", Cell: "B8", Value: "2"}})

	if _, err := q.Confirm(context.Background(), "chat1"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if len(led.writes) != 1 || led.writes[0] != "set Cierres!B8=2" {
		t.Fatalf("older proposal leaked through: %v", led.writes)
	}
}

func TestConfirmExecutesInOrder(t *testing.T) {
	led := &fakeLedger{}
	q := newTestQueue(led)
	q.Propose("chat1", []Mutation{
		{Sheet: "Cierres", Cell: "B7", Value: "10"},
		{Sheet: "Cierres", Cell: "C7", Delete: true},
		{Sheet: "Cierres", Cell: "D7", Value: "30"},
	})

	report, err := q.Confirm(context.Background(), "chat1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	want := []string{"set Cierres!B7=10", "clear Cierres!C7", "set Cierres!D7=30"}
	if len(led.writes) != 3 {
		t.Fatalf("writes = %v", led.writes)
	}
	for i, w := range want {
		if led.writes[i] != w {
			t.Fatalf("write %d = %q, want %q", i, led.writes[i], w)
		}
	}
	if !strings.Contains(report, "apliqué 3") {
		t.Fatalf("report = %q", report)
	}
	if q.HasPending("chat1") {
		t.Fatal("set must be consumed by confirm")
	}
}

// One failing write must not stop the remaining mutations: partial
// application is the documented behavior, not all-or-nothing.
func TestConfirmIsBestEffort(t *testing.T) {
	led := &fakeLedger{failCells: map[string]bool{"C7": true}}
	q := newTestQueue(led)
	q.Propose("chat1", []Mutation{
		{Sheet: "Cierres", Cell: "B7", Value: "10"},
		{Sheet: "Cierres", Cell: "C7", Value: "20"},
		{Sheet: "Cierres", Cell: "D7", Value: "30"},
	})

	report, err := q.Confirm(context.Background(), "chat1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if len(led.writes) != 2 {
		t.Fatalf("expected the two healthy writes to apply, got %v", led.writes)
	}
	if !strings.Contains(report, "2. falló") {
		t.Fatalf("failed mutation not reported:\n%s", report)
	}
	if !strings.Contains(report, "Apliqué 2 cambio(s); 1 fallaron") {
		t.Fatalf("partial summary missing:\n%s", report)
	}
	if strings.Contains(report, "backend unavailable") {
		t.Fatalf("raw backend error leaked to the user:\n%s", report)
	}
}

func TestConfirmResolvesDateKeyedTargets(t *testing.T) {
	led := &fakeLedger{dates: []string{"01/02/2026", "02/02/2026"}}
	q := newTestQueue(led)
	q.Propose("chat1", []Mutation{
		{Sheet: "Cierres", Column: "B", DateKey: "02/02/2026", Value: "1500"},
	})

	if _, err := q.Confirm(context.Background(), "chat1"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if len(led.writes) != 1 || led.writes[0] != "set Cierres!B4=1500" {
		t.Fatalf("date-keyed target resolved wrong: %v", led.writes)
	}
}

func TestConfirmUnresolvableDateReported(t *testing.T) {
	led := &fakeLedger{dates: []string{"01/02/2026"}}
	q := newTestQueue(led)
	q.Propose("chat1", []Mutation{
		{Sheet: "Cierres", Column: "B", DateKey: "09/09/2026", Value: "1"},
	})

	report, err := q.Confirm(context.Background(), "chat1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if len(led.writes) != 0 {
		t.Fatalf("nothing should be written: %v", led.writes)
	}
	if !strings.Contains(report, "no hay fila para 09/09/2026") {
		t.Fatalf("missing row-resolution failure:\n%s", report)
	}
}

func TestCancelDiscardsWithoutSideEffects(t *testing.T) {
	led := &fakeLedger{}
	q := newTestQueue(led)
	q.Propose("chat1", []Mutation{{Sheet: "Cierres", Cell: "B7", Value: "10"}})

	if !q.Cancel("chat1") {
		t.Fatal("Cancel returned false with a pending set")
	}
	if q.HasPending("chat1") || len(led.writes) != 0 {
		t.Fatalf("cancel left state behind: pending=%v writes=%v", q.HasPending("chat1"), led.writes)
	}
	if q.Cancel("chat1") {
		t.Fatal("Cancel with nothing pending should return false")
	}
}

func TestConfirmWithNothingPendingErrors(t *testing.T) {
	q := newTestQueue(&fakeLedger{})
	if _, err := q.Confirm(context.Background(), "chat1"); err == nil {
		t.Fatal("Confirm with nothing pending should error")
	}
}
