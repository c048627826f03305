// Package mutation holds proposed ledger writes behind an explicit
// confirmation gate. Nothing reaches the external ledger until the operator
// approves the rendered preview.
package mutation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cierrelabs/cierrebot/internal/audit"
	"github.com/cierrelabs/cierrebot/internal/ledger"
)

// Mutation is one proposed write. Either Cell is set, or Column+DateKey is
// resolved to a cell at execution time.
type Mutation struct {
	Sheet      string
	Cell       string
	Column     string
	DateKey    string
	Value      string
	Delete     bool
	Provenance string
}

// Queue owns at most one pending mutation set per conversation. A newer
// proposal replaces the old one wholesale.
type Queue struct {
	mu      sync.Mutex
	pending map[string][]Mutation

	store    ledger.Store
	resolver *ledger.RowResolver
	journal  *audit.Journal
}

// NewQueue creates a confirmation gate executing against the given store.
func NewQueue(store ledger.Store, resolver *ledger.RowResolver, journal *audit.Journal) *Queue {
	return &Queue{
		pending:  make(map[string][]Mutation),
		store:    store,
		resolver: resolver,
		journal:  journal,
	}
}

// Propose replaces the conversation's pending set and returns the preview
// the operator must approve.
func (q *Queue) Propose(conversationID string, muts []Mutation) string {
	q.mu.Lock()
	q.pending[conversationID] = muts
	q.mu.Unlock()

	var b strings.Builder
	b.WriteString("Voy a aplicar estos cambios:\n")
	for i, m := range muts {
		action := "ESCRIBIR"
		if m.Delete {
			action = "BORRAR"
		}
		target := m.Cell
		if target == "" {
			target = fmt.Sprintf("%s@%s", m.Column, m.DateKey)
		}
		fmt.Fprintf(&b, "%d. %s %s!%s", i+1, action, m.Sheet, target)
		if !m.Delete {
			fmt.Fprintf(&b, " = %s", m.Value)
		}
		if m.Provenance != "" {
			fmt.Fprintf(&b, " (%s)", m.Provenance)
		}
		b.WriteString("\n")
	}
	b.WriteString("Respondé \"si\" para confirmar o \"no\" para cancelar.")
	return b.String()
}

// HasPending reports whether the conversation has an unconfirmed set.
func (q *Queue) HasPending(conversationID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[conversationID]) > 0
}

// Cancel discards the pending set with no side effects. Returns false when
// nothing was pending.
func (q *Queue) Cancel(conversationID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending[conversationID]) == 0 {
		return false
	}
	delete(q.pending, conversationID)
	return true
}

// Confirm executes the pending set in listed order. Mutations are
// independent: a failed write is reported and the rest are still attempted.
// The set is consumed either way.
func (q *Queue) Confirm(ctx context.Context, conversationID string) (string, error) {
	q.mu.Lock()
	muts := q.pending[conversationID]
	delete(q.pending, conversationID)
	q.mu.Unlock()
	if len(muts) == 0 {
		return "", fmt.Errorf("nothing pending for conversation %s", conversationID)
	}

	var b strings.Builder
	applied, failed := 0, 0
	for i, m := range muts {
		err := q.apply(ctx, conversationID, m)
		if err != nil {
			failed++
			fmt.Fprintf(&b, "%d. falló: %v\n", i+1, userSafe(err))
			continue
		}
		applied++
	}
	switch {
	case failed == 0:
		fmt.Fprintf(&b, "Listo, apliqué %d cambio(s).", applied)
	case applied == 0:
		b.WriteString("No pude aplicar ningún cambio. La planilla no respondió.")
	default:
		fmt.Fprintf(&b, "Apliqué %d cambio(s); %d fallaron. Revisá la planilla antes de reintentar.", applied, failed)
	}
	return b.String(), nil
}

func (q *Queue) apply(ctx context.Context, conversationID string, m Mutation) error {
	cell := m.Cell
	if cell == "" {
		row, found, err := q.resolver.FindRow(ctx, m.DateKey)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", m.DateKey, err)
		}
		if !found {
			return fmt.Errorf("no hay fila para %s", m.DateKey)
		}
		cell = fmt.Sprintf("%s%d", m.Column, row)
	}

	var err error
	if m.Delete {
		err = q.store.ClearCell(ctx, m.Sheet, cell)
	} else {
		err = q.store.WriteCell(ctx, m.Sheet, cell, m.Value)
	}

	outcome, detail := "ok", ""
	if err != nil {
		outcome, detail = "error", err.Error()
	}
	q.journal.Record(audit.Entry{
		ConversationID: conversationID,
		Sheet:          m.Sheet,
		Target:         cell,
		Value:          m.Value,
		Outcome:        outcome,
		Detail:         detail,
	})
	return err
}

// userSafe strips wrapped backend detail down to the user-facing cause.
func userSafe(err error) string {
	msg := err.Error()
	if strings.HasPrefix(msg, "no hay fila") {
		return msg
	}
	return "la planilla no respondió"
}
