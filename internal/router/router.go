// Package router dispatches each drained intent to confirmation handling,
// wizard continuation, or the free-form fallback, one intent at a time per
// conversation.
package router

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cierrelabs/cierrebot/internal/batch"
	"github.com/cierrelabs/cierrebot/internal/inference"
	"github.com/cierrelabs/cierrebot/internal/ledger"
	"github.com/cierrelabs/cierrebot/internal/mutation"
	"github.com/cierrelabs/cierrebot/internal/normalize"
	"github.com/cierrelabs/cierrebot/internal/session"
	"github.com/cierrelabs/cierrebot/internal/transport"
)

const genericFailure = "Algo falló de mi lado. Probá de nuevo en un rato."

const converseSystemPrompt = `Sos el asistente de un equipo de caja que lleva sus cierres en una planilla.
Contestá corto y en el mismo registro del que pregunta.`

// Options tunes routing behavior.
type Options struct {
	Vocab Vocab
	// Columns maps extraction labels ("deposito", "gasto") to sheet columns.
	Columns map[string]string
	// MaxPromptChars rejects oversized fallback payloads before any
	// inference call is made.
	MaxPromptChars int
	// HistoryDepth is how many prior turns the fallback keeps per
	// conversation.
	HistoryDepth int
}

// Router owns intent dispatch and the per-conversation lanes.
type Router struct {
	opts     Options
	sessions *session.Store
	queue    *mutation.Queue
	infer    inference.Service
	sender   transport.Sender
	store    ledger.Store
	resolver *ledger.RowResolver
	layout   ledger.Layout

	lanes *lanes

	histMu  sync.Mutex
	history map[string][]inference.Turn
}

// New wires a router. infer may be nil when no inference provider is
// configured; vision and fallback then answer with a fixed notice.
func New(opts Options, sessions *session.Store, queue *mutation.Queue, infer inference.Service, sender transport.Sender, store ledger.Store, resolver *ledger.RowResolver, layout ledger.Layout) *Router {
	if opts.MaxPromptChars <= 0 {
		opts.MaxPromptChars = 4000
	}
	if opts.HistoryDepth <= 0 {
		opts.HistoryDepth = 6
	}
	if len(opts.Vocab.Confirm) == 0 {
		opts.Vocab = DefaultVocab()
	}
	return &Router{
		opts:     opts,
		sessions: sessions,
		queue:    queue,
		infer:    infer,
		sender:   sender,
		store:    store,
		resolver: resolver,
		layout:   layout,
		lanes:    newLanes(),
		history:  make(map[string][]inference.Turn),
	}
}

// Dispatch queues the intent on its conversation's lane and returns
// immediately.
func (r *Router) Dispatch(it batch.Intent) {
	r.lanes.submit(it.ConversationID, func() {
		r.handle(context.Background(), it)
	})
}

// Close drains the lanes.
func (r *Router) Close() {
	r.lanes.close()
}

// handle runs one intent to completion. It is always called serially per
// conversation.
func (r *Router) handle(ctx context.Context, it batch.Intent) {
	reply := r.route(ctx, it)
	if reply == "" {
		return
	}
	if err := r.sender.Send(it.ConversationID, reply); err != nil {
		log.Printf("send to %s failed: %v", it.ConversationID, err)
	}
}

func (r *Router) route(ctx context.Context, it batch.Intent) string {
	conv := it.ConversationID
	text := strings.TrimSpace(it.Text())

	// Confirmation tokens only apply when something is pending; otherwise
	// they fall through so a stray "ok" keeps its ordinary meaning.
	if r.opts.Vocab.IsConfirm(text) && r.queue.HasPending(conv) {
		report, err := r.queue.Confirm(ctx, conv)
		if err != nil {
			return genericFailure
		}
		return report
	}
	if r.opts.Vocab.IsCancel(text) {
		if r.queue.Cancel(conv) {
			return "Listo, descarté los cambios propuestos."
		}
		if r.sessions.Cancel(conv) {
			return "Cierre cancelado. Arrancá de nuevo con \"cierre\" cuando quieras."
		}
		// No session, nothing pending: ordinary routing.
	}

	if strings.HasPrefix(strings.ToLower(text), "/resumen") {
		return r.resumen(ctx, text)
	}

	if r.sessions.Active(conv) {
		reply, err := r.sessions.Advance(ctx, conv, text)
		if err != nil {
			log.Printf("advance %s: %v", conv, err)
			return genericFailure
		}
		return reply
	}

	if r.opts.Vocab.IsTrigger(text) {
		return r.sessions.Start(conv)
	}

	if len(it.Images) > 0 {
		return r.proposeFromImages(ctx, it, text)
	}

	if text == "" {
		return ""
	}
	return r.fallback(ctx, conv, text)
}

// resumen replies with the ledger row for the requested date, or the most
// recent one.
func (r *Router) resumen(ctx context.Context, text string) string {
	fields := strings.Fields(text)

	var row int
	if len(fields) > 1 {
		key, err := normalize.DateKey(fields[1])
		if err != nil {
			return "No entendí la fecha del resumen. Probá /resumen dd/mm/aaaa."
		}
		found := false
		row, found, err = r.resolver.FindRow(ctx, key)
		if err != nil {
			return genericFailure
		}
		if !found {
			return fmt.Sprintf("No hay cierre para %s.", key)
		}
	} else {
		last, found, err := r.resolver.LastRow(ctx)
		if err != nil {
			return genericFailure
		}
		if !found {
			return "No hay datos."
		}
		row = last
	}

	cells, err := r.store.ReadRange(ctx, r.layout.Sheet, fmt.Sprintf("%d:%d", row, row))
	if err != nil {
		return genericFailure
	}
	if len(cells) == 0 || len(cells[0]) == 0 {
		return "No hay datos."
	}
	return "Fila: " + strings.Join(cells[0], " | ")
}

// proposeFromImages runs the vision extraction and turns validated figures
// into a pending mutation set.
func (r *Router) proposeFromImages(ctx context.Context, it batch.Intent, text string) string {
	if r.infer == nil {
		return "No tengo el servicio de lectura de imágenes configurado."
	}
	if len(text) > r.opts.MaxPromptChars {
		return "El mensaje es demasiado largo para procesarlo junto con las imágenes."
	}

	images := make([]inference.Image, 0, len(it.Images))
	for _, a := range it.Images {
		images = append(images, inference.Image{MediaType: a.MediaType, Data: a.Data})
	}
	ext, err := r.infer.ClassifyAttachments(ctx, images, text)
	if err != nil {
		log.Printf("classify for %s: %v", it.ConversationID, err)
		return genericFailure
	}

	var muts []mutation.Mutation
	var warnings []string
	for _, f := range ext.Fields {
		col, ok := r.opts.Columns[strings.ToLower(f.Label)]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("no sé dónde va %q", f.Label))
			continue
		}
		amount, err := normalize.Amount(f.Amount)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("no pude leer el monto de %s", f.Label))
			continue
		}
		key, err := normalize.DateKey(f.Date)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("no pude leer la fecha de %s", f.Label))
			continue
		}
		muts = append(muts, mutation.Mutation{
			Sheet:      r.layout.Sheet,
			Column:     col,
			DateKey:    key,
			Value:      normalize.FormatAmount(amount),
			Provenance: fmt.Sprintf("%s %s", ext.Kind, uuid.New().String()[:8]),
		})
	}

	if len(muts) == 0 {
		reply := "No pude sacar nada utilizable de la imagen."
		if len(warnings) > 0 {
			reply += "\n" + strings.Join(warnings, "\n")
		}
		return reply
	}

	preview := r.queue.Propose(it.ConversationID, muts)
	if len(warnings) > 0 {
		preview = strings.Join(warnings, "\n") + "\n" + preview
	}
	return preview
}

// fallback hands free-form text to the conversation model, keeping a short
// per-conversation history.
func (r *Router) fallback(ctx context.Context, conv, text string) string {
	if r.infer == nil {
		return "Solo puedo ayudarte con el cierre. Escribí \"cierre\" para arrancar."
	}
	if len(text) > r.opts.MaxPromptChars {
		return "El mensaje es demasiado largo, resumilo un poco."
	}

	r.histMu.Lock()
	history := append([]inference.Turn(nil), r.history[conv]...)
	r.histMu.Unlock()

	answer, err := r.infer.Converse(ctx, converseSystemPrompt, history, text)
	if err != nil {
		log.Printf("converse for %s: %v", conv, err)
		return genericFailure
	}

	r.histMu.Lock()
	h := append(r.history[conv], inference.Turn{Role: "user", Text: text}, inference.Turn{Role: "assistant", Text: answer})
	if len(h) > r.opts.HistoryDepth {
		h = h[len(h)-r.opts.HistoryDepth:]
	}
	r.history[conv] = h
	r.histMu.Unlock()

	return answer
}
