// Package inference defines the unified interface for the inference
// collaborator: attachment classification (vision) and free-form
// conversation. Each vendor adapter (openai.go, anthropic.go) normalizes its
// API into these two calls. Outputs are untrusted until the core's own
// normalization accepts them.
package inference

import "context"

// Image is one attachment handed to the vision call.
type Image struct {
	MediaType string
	Data      []byte
}

// Field is one figure extracted from an attachment. Amount and Date are raw
// strings: the caller validates them through the normalizers.
type Field struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
	Date   string `json:"date"`
}

// Extraction is the structured result of classifying attachments.
type Extraction struct {
	Kind    string  `json:"kind"` // e.g. "recibo", "comprobante", "desconocido"
	Fields  []Field `json:"fields"`
	Summary string  `json:"summary"`
}

// Turn is one prior exchange in a free-form conversation.
type Turn struct {
	Role string // "user" | "assistant"
	Text string
}

// Service is the inference collaborator: a potentially slow, potentially
// failing black box.
type Service interface {
	// ClassifyAttachments extracts structured figures from images, using
	// contextText as a hint.
	ClassifyAttachments(ctx context.Context, images []Image, contextText string) (*Extraction, error)

	// Converse answers free-form text given a system prompt and recent
	// history.
	Converse(ctx context.Context, systemPrompt string, history []Turn, userContent string) (string, error)

	// Name returns the provider identifier, e.g. "openai", "anthropic".
	Name() string
}

// classifySystemPrompt instructs the model to answer with bare JSON matching
// Extraction. Shared by all adapters.
const classifySystemPrompt = `Sos el asistente de una planilla de cierres de caja.
Te llegan fotos de recibos, comprobantes de depósito o capturas de transferencias.
Extraé las cifras y devolvé SOLO un JSON con esta forma, sin texto adicional:
{"kind":"recibo|comprobante|desconocido","summary":"una línea","fields":[{"label":"deposito|retiro|gasto|prestamo","amount":"1234,56","date":"dd/mm/aaaa"}]}
Si no podés leer una cifra, omitila. No inventes valores.`
