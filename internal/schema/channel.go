package schema

import "context"

// SendOptions controls how a single outbound text is rendered.
type SendOptions struct {
	// Markdown requests rich-text rendering.
	Markdown bool
	// ReplyTo threads the message under an earlier message id (0 = none).
	ReplyTo int
}

// Transport is the messaging surface the engine talks to.
//
// Errors are classified with ErrBlocked, ErrFormatting and ErrTransient so
// callers can decide between teardown, plain-text retry and giving up.
type Transport interface {
	// SendText delivers one message and returns its transport id.
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error)
	// SendDocument uploads a file attachment.
	SendDocument(ctx context.Context, chatID int64, name string, data []byte) error
	// SendPresence signals a "composing" indicator.
	SendPresence(ctx context.Context, chatID int64) error
	// Reachable returns nil when the chat can still receive messages.
	Reachable(ctx context.Context, chatID int64) error
	// FetchFile downloads a previously received attachment.
	FetchFile(ctx context.Context, fileRef string) ([]byte, error)
}

// Channel is a Transport that also produces inbound events.
type Channel interface {
	Transport
	// Name returns the unique channel identifier (e.g. "telegram").
	Name() string
	// Start begins listening for incoming messages; it blocks until ctx is cancelled.
	Start(ctx context.Context) error
}

// FrameDecoder turns animated media into a single still image.
type FrameDecoder interface {
	FirstFrame(ctx context.Context, data []byte) ([]byte, error)
}
