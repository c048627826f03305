// Package session owns the per-conversation settlement wizard: a fixed
// sequence of prompts that collects one closing and persists it as a single
// ledger row.
//
// Sessions are volatile and never expire: a conversation left mid-flow keeps
// its session until it finishes or cancels. Callers must serialize Advance
// per conversation (the router's lanes do); the store's own mutex only
// protects the session map.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cierrelabs/cierrebot/internal/audit"
	"github.com/cierrelabs/cierrebot/internal/ledger"
	"github.com/cierrelabs/cierrebot/internal/normalize"
)

// State is the wizard step awaiting input. States only advance forward
// through the fixed sequence; the sole other transition is cancellation.
type State int

const (
	StateDate State = iota
	StateTeam
	StateLoans
	StateExpenses
	StateSettled
	StateNotes
)

// NotesSentinel is stored when the operator leaves the notes step blank.
const NotesSentinel = "sin observaciones"

// msgSaveFailed keeps the session in the notes state; resending the
// observations retries the whole terminal transition.
const msgSaveFailed = "Hubo un problema con la planilla y no pude guardar el cierre. Mandá las observaciones de nuevo para reintentar."

// Session is one in-progress closing.
type Session struct {
	State          State
	TeamIndex      int
	DateKey        string
	Teams          []ledger.TeamResult
	LoansRequested float64
	LoansReturned  float64
	Expenses       float64
	AmountSettled  float64
}

// Config carries the flow shape: team names in prompt order, the commission
// rate applied to deposits, and whether the expenses step exists in this
// variant of the flow.
type Config struct {
	Teams          []string
	CommissionRate float64
	ExpensesStep   bool
}

// Store owns all live sessions and the terminal persistence path.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	cfg      Config
	store    ledger.Store
	layout   ledger.Layout
	resolver *ledger.RowResolver
	journal  *audit.Journal
}

// NewStore creates a session store persisting through the given ledger.
func NewStore(cfg Config, store ledger.Store, layout ledger.Layout, resolver *ledger.RowResolver, journal *audit.Journal) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		store:    store,
		layout:   layout,
		resolver: resolver,
		journal:  journal,
	}
}

// Active reports whether the conversation has a wizard in progress.
func (s *Store) Active(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[conversationID] != nil
}

// Len returns the number of live sessions (operational visibility only).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Start begins a new wizard for the conversation, replacing any prior one,
// and returns the first prompt.
func (s *Store) Start(conversationID string) string {
	s.mu.Lock()
	s.sessions[conversationID] = &Session{State: StateDate}
	s.mu.Unlock()
	return "Arrancamos el cierre. ¿Fecha? (dd/mm/aaaa)"
}

// Cancel discards the conversation's session. Returns false when there was
// none.
func (s *Store) Cancel(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[conversationID] == nil {
		return false
	}
	delete(s.sessions, conversationID)
	return true
}

// Advance feeds one message into the conversation's wizard and returns the
// reply. Validation failures re-prompt without touching the session; a
// persistence failure in the terminal step keeps the session so the operator
// can retry just that step.
func (s *Store) Advance(ctx context.Context, conversationID, text string) (string, error) {
	s.mu.Lock()
	sess := s.sessions[conversationID]
	s.mu.Unlock()
	if sess == nil {
		return "", fmt.Errorf("no session for conversation %s", conversationID)
	}

	switch sess.State {
	case StateDate:
		return s.stepDate(sess, text), nil
	case StateTeam:
		return s.stepTeam(sess, text), nil
	case StateLoans:
		return s.stepLoans(sess, text), nil
	case StateExpenses:
		return s.stepExpenses(sess, text), nil
	case StateSettled:
		return s.stepSettled(sess, text), nil
	case StateNotes:
		return s.stepNotes(ctx, conversationID, sess, text)
	default:
		return "", fmt.Errorf("invalid wizard state %d", sess.State)
	}
}

func (s *Store) stepDate(sess *Session, text string) string {
	// Whole message first (covers space-separated dates), then the first
	// token for messages like "01/02/2026 porfa".
	key, err := normalize.DateKey(text)
	if err != nil {
		key, err = normalize.DateKey(firstToken(text))
	}
	if err != nil {
		return "No entendí la fecha. Probá con dd/mm/aaaa, por ejemplo 03/05/2026."
	}
	sess.DateKey = key
	sess.State = StateTeam
	sess.TeamIndex = 0
	return s.teamPrompt(sess)
}

func (s *Store) stepTeam(sess *Session, text string) string {
	amounts, err := parseAmounts(text)
	if err != nil || (len(amounts) != 2 && len(amounts) != 3) {
		return fmt.Sprintf("Necesito dos números (depósitos y retiros) o tres (venta, depósitos y retiros) para %s.",
			s.cfg.Teams[sess.TeamIndex])
	}

	var sale, deposits, withdrawals float64
	if len(amounts) == 2 {
		deposits, withdrawals = amounts[0], amounts[1]
		sale = normalize.Round2(deposits - withdrawals)
	} else {
		sale, deposits, withdrawals = amounts[0], amounts[1], amounts[2]
	}
	commission := normalize.Round2(deposits * s.cfg.CommissionRate)
	var net float64
	if len(amounts) == 2 {
		net = normalize.Round2(sale - commission)
	} else {
		net = normalize.Round2(sale + deposits - withdrawals - commission)
	}

	sess.Teams = append(sess.Teams, ledger.TeamResult{
		Name:        s.cfg.Teams[sess.TeamIndex],
		Sale:        sale,
		Deposits:    deposits,
		Withdrawals: withdrawals,
		Commission:  commission,
		Net:         net,
	})
	sess.TeamIndex++
	if sess.TeamIndex < len(s.cfg.Teams) {
		return s.teamPrompt(sess)
	}
	sess.State = StateLoans
	return "Préstamos: ¿cuánto se pidió y cuánto se devolvió? (dos números)"
}

func (s *Store) stepLoans(sess *Session, text string) string {
	amounts, err := parseAmounts(text)
	if err != nil || len(amounts) != 2 {
		return "Necesito dos números: préstamos pedidos y devueltos."
	}
	sess.LoansRequested, sess.LoansReturned = amounts[0], amounts[1]
	if s.cfg.ExpensesStep {
		sess.State = StateExpenses
		return "¿Gastos del día?"
	}
	sess.State = StateSettled
	return "¿Cuánto se rindió al banco?"
}

func (s *Store) stepExpenses(sess *Session, text string) string {
	amounts, err := parseAmounts(text)
	if err != nil || len(amounts) != 1 {
		return "Necesito un solo número para los gastos."
	}
	sess.Expenses = amounts[0]
	sess.State = StateSettled
	return "¿Cuánto se rindió al banco?"
}

func (s *Store) stepSettled(sess *Session, text string) string {
	amounts, err := parseAmounts(text)
	if err != nil || len(amounts) != 1 {
		return "Necesito un solo número para lo rendido."
	}
	sess.AmountSettled = amounts[0]
	sess.State = StateNotes
	return "¿Observaciones? (mandá un guion si no hay)"
}

// stepNotes is the terminal transition: derive totals, resolve the row,
// persist, summarize, clear. On a persistence failure the session stays in
// the notes state so the operator can retry without redoing the wizard.
func (s *Store) stepNotes(ctx context.Context, conversationID string, sess *Session, text string) (string, error) {
	notes := strings.TrimSpace(text)
	if notes == "" || notes == "-" {
		notes = NotesSentinel
	}

	settlement := &ledger.Settlement{
		DateKey:        sess.DateKey,
		Teams:          sess.Teams,
		LoansRequested: sess.LoansRequested,
		LoansReturned:  sess.LoansReturned,
		Expenses:       sess.Expenses,
		AmountSettled:  sess.AmountSettled,
		Notes:          notes,
	}

	var sum float64
	for _, t := range sess.Teams {
		sum += t.Net
	}
	settlement.TotalNet = normalize.Round2(sum - sess.Expenses)

	// A store failure here is not "no carry-over": persisting with carry 0
	// would poison every later settlement's carry read. Abort and retry.
	carry, _, err := s.resolver.LastPending(ctx, sess.DateKey)
	if err != nil {
		return msgSaveFailed, nil
	}
	settlement.CarryOver = carry
	settlement.TotalDue = normalize.Round2(settlement.TotalNet + carry)
	settlement.Shortfall = normalize.Round2(settlement.TotalDue - sess.AmountSettled)

	row, err := s.resolver.NextRow(ctx, sess.DateKey)
	if err != nil {
		return msgSaveFailed, nil
	}
	values := ledger.BuildRow(settlement)
	if err := s.store.WriteRow(ctx, s.layout.Sheet, row, values); err != nil {
		s.journal.Record(audit.Entry{
			ConversationID: conversationID,
			Sheet:          s.layout.Sheet,
			Target:         fmt.Sprintf("row %d", row),
			Value:          sess.DateKey,
			Outcome:        "error",
			Detail:         err.Error(),
		})
		return msgSaveFailed, nil
	}
	s.journal.Record(audit.Entry{
		ConversationID: conversationID,
		Sheet:          s.layout.Sheet,
		Target:         fmt.Sprintf("row %d", row),
		Value:          sess.DateKey,
		Outcome:        "ok",
	})

	s.mu.Lock()
	delete(s.sessions, conversationID)
	s.mu.Unlock()

	return summarize(settlement), nil
}

func (s *Store) teamPrompt(sess *Session) string {
	return fmt.Sprintf("Equipo %s: depósitos y retiros (o venta, depósitos y retiros).",
		s.cfg.Teams[sess.TeamIndex])
}

// summarize renders the human-readable closing report with derived alerts.
func summarize(st *ledger.Settlement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cierre %s registrado.\n", st.DateKey)
	for _, t := range st.Teams {
		fmt.Fprintf(&b, "  %s: neto %s\n", t.Name, normalize.FormatAmount(t.Net))
	}
	fmt.Fprintf(&b, "Neto total: %s\n", normalize.FormatAmount(st.TotalNet))
	fmt.Fprintf(&b, "Arrastre anterior: %s\n", normalize.FormatAmount(st.CarryOver))
	fmt.Fprintf(&b, "Total a rendir: %s\n", normalize.FormatAmount(st.TotalDue))
	fmt.Fprintf(&b, "Rendido: %s\n", normalize.FormatAmount(st.AmountSettled))
	fmt.Fprintf(&b, "Diferencia: %s\n", normalize.FormatAmount(st.Shortfall))

	if st.Shortfall > 0 {
		fmt.Fprintf(&b, "AVISO: falta rendir %s.\n", normalize.FormatAmount(st.Shortfall))
	}
	if st.Shortfall < 0 {
		fmt.Fprintf(&b, "AVISO: se rindió %s de más.\n", normalize.FormatAmount(-st.Shortfall))
	}
	if st.LoansRequested != st.LoansReturned {
		fmt.Fprintf(&b, "AVISO: préstamo pendiente (%s pedido, %s devuelto).\n",
			normalize.FormatAmount(st.LoansRequested), normalize.FormatAmount(st.LoansReturned))
	}
	if st.TotalNet < 0 {
		b.WriteString("AVISO: neto negativo, revisar los balances por equipo.\n")
	}
	if worst := mostNegativeTeam(st.Teams); worst != "" {
		fmt.Fprintf(&b, "AVISO: %s quedó en negativo.\n", worst)
	}
	return strings.TrimRight(b.String(), "\n")
}

// mostNegativeTeam names the team with the most negative net, or "" when no
// team is negative.
func mostNegativeTeam(teams []ledger.TeamResult) string {
	name := ""
	worst := 0.0
	for _, t := range teams {
		if t.Net < worst {
			worst = t.Net
			name = t.Name
		}
	}
	return name
}

// parseAmounts splits text on whitespace and normalizes each token. Any
// unparseable token fails the whole message so a partial read never slips
// into the session.
func parseAmounts(text string) ([]float64, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, normalize.ErrUnparseable
	}
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := normalize.Amount(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func firstToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
