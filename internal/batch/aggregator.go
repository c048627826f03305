// Package batch buffers bursty per-conversation message fragments over a
// quiescence window and emits them as single intents.
package batch

import (
	"strings"
	"sync"
	"time"

	"github.com/cierrelabs/cierrebot/internal/transport"
)

// Intent is one coherent unit of operator input: every fragment that arrived
// within a single quiescence window for one conversation. Texts and Images
// are two independently-ordered channels of the same logical turn; their
// interleaving is not preserved.
type Intent struct {
	ConversationID string
	Texts          []string
	Images         []transport.Attachment
}

// Text returns the newline-joined text fragments in arrival order.
func (it Intent) Text() string {
	return strings.Join(it.Texts, "\n")
}

type entry struct {
	texts  []string
	images []transport.Attachment
	timer  *time.Timer
	gen    int // bumped on every re-arm; stale timer callbacks check it
}

// Aggregator owns one pending batch per conversation. Each enqueued fragment
// lands in exactly one emitted intent: a fragment arriving after the timer
// fired but before hand-off starts a new batch.
type Aggregator struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*entry
	emit    func(Intent)
}

// New creates an aggregator that calls emit once per drained batch. Emit
// runs outside the aggregator's lock.
func New(window time.Duration, emit func(Intent)) *Aggregator {
	return &Aggregator{
		window:  window,
		pending: make(map[string]*entry),
		emit:    emit,
	}
}

// Enqueue appends a fragment to the conversation's batch, creating one if
// none is pending, and re-arms the quiescence timer.
func (a *Aggregator) Enqueue(conversationID, text string, images ...transport.Attachment) {
	a.mu.Lock()
	e := a.pending[conversationID]
	if e == nil {
		e = &entry{}
		a.pending[conversationID] = e
	} else {
		e.timer.Stop()
	}
	if text != "" {
		e.texts = append(e.texts, text)
	}
	e.images = append(e.images, images...)

	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(a.window, func() {
		a.drain(conversationID, e, gen)
	})
	a.mu.Unlock()
}

// Pending reports whether a batch is currently buffered for the conversation.
func (a *Aggregator) Pending(conversationID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending[conversationID] != nil
}

// Close stops all pending timers, dropping buffered fragments. Batch state
// is volatile; there is nothing to flush on shutdown.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, e := range a.pending {
		e.timer.Stop()
		delete(a.pending, id)
	}
}

func (a *Aggregator) drain(conversationID string, e *entry, gen int) {
	a.mu.Lock()
	cur := a.pending[conversationID]
	if cur != e || e.gen != gen {
		// Re-armed or already drained while this callback waited on the
		// lock; the live timer owns the batch now.
		a.mu.Unlock()
		return
	}
	delete(a.pending, conversationID)
	a.mu.Unlock()

	if len(e.texts) == 0 && len(e.images) == 0 {
		return
	}
	a.emit(Intent{
		ConversationID: conversationID,
		Texts:          e.texts,
		Images:         e.images,
	})
}
