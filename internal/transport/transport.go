// Package transport defines the conversation transport collaborator: an
// event source for inbound operator messages and a sink for replies.
package transport

import "context"

// Attachment is an inbound image, already fetched from the transport.
type Attachment struct {
	ID        string
	MediaType string
	Data      []byte
}

// Event is one inbound message fragment.
type Event struct {
	ConversationID string
	Text           string
	Attachments    []Attachment
}

// Sender delivers outbound replies.
type Sender interface {
	Send(conversationID, text string) error
}

// Transport is a full conversation transport: it produces inbound events
// until ctx is cancelled and delivers outbound replies.
type Transport interface {
	Sender
	// Run blocks, invoking handle for every inbound event. Returns when
	// ctx is cancelled or the transport fails fatally.
	Run(ctx context.Context, handle func(Event)) error
}
