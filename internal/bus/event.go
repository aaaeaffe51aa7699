// Package bus defines the events that flow from transports to the engine.
package bus

import (
	"fmt"
	"time"
)

// Kind classifies an inbound event.
type Kind string

const (
	KindText      Kind = "text"
	KindImage     Kind = "image"
	KindAnimation Kind = "animation"
	KindVoice     Kind = "voice"
	KindDocument  Kind = "document"
	KindSticker   Kind = "sticker"
	// KindSentinel is synthesised by the engine itself, never by a user.
	KindSentinel Kind = "sentinel"
)

// ActiveSlot makes the engine resolve the user's active slot.
const ActiveSlot = -1

// InboundEvent is one message received from a transport, or an internal
// event the engine treats exactly like one.
type InboundEvent struct {
	Kind    Kind
	Channel string
	UserID  int64
	// Slot is the slot the event addresses, or ActiveSlot.
	Slot      int
	Text      string
	Caption   string
	FileRef   string
	MimeType  string
	FileSize  int64
	// Animated marks a sticker whose FileRef points at its thumbnail.
	Animated  bool
	MessageID int
	Username  string
	Timestamp time.Time
}

// NewText builds a text event for the user's active slot.
func NewText(channel string, userID int64, messageID int, text string) InboundEvent {
	return InboundEvent{
		Kind:      KindText,
		Channel:   channel,
		UserID:    userID,
		Slot:      ActiveSlot,
		Text:      text,
		MessageID: messageID,
		Timestamp: time.Now(),
	}
}

// NewSentinel builds an internal event addressed to a specific slot.
func NewSentinel(userID int64, slot int, text string) InboundEvent {
	return InboundEvent{
		Kind:      KindSentinel,
		Channel:   "internal",
		UserID:    userID,
		Slot:      slot,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// Preview returns a short snippet of the event for logging.
func (e InboundEvent) Preview() string {
	text := e.Text
	if text == "" {
		text = e.Caption
	}
	r := []rune(text)
	if len(r) > 80 {
		text = string(r[:80]) + "..."
	}
	if e.Kind != KindText && e.Kind != KindSentinel {
		return fmt.Sprintf("[%s] %s", e.Kind, text)
	}
	return text
}
