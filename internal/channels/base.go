// Package channels provides chat-platform channel implementations.
package channels

import (
	"context"
	"log/slog"
	"strings"

	"github.com/crystaldolphin/confidant/internal/bus"
)

// Base holds common state and helper methods shared by all channels.
type Base struct {
	channelName string
	b           bus.Bus
	allowFrom   []string // empty = allow all
}

// NewBase creates a Base with the given channel name, bus, and allowlist.
func NewBase(name string, b bus.Bus, allowFrom []string) Base {
	return Base{channelName: name, b: b, allowFrom: allowFrom}
}

// IsAllowed checks whether senderID is on the allowlist.
// senderID may be "id|username" (Telegram) or a plain string.
func (b *Base) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}
	for _, allowed := range b.allowFrom {
		if allowed == senderID {
			return true
		}
	}
	if strings.Contains(senderID, "|") {
		for _, part := range strings.Split(senderID, "|") {
			if part == "" {
				continue
			}
			for _, allowed := range b.allowFrom {
				if allowed == part || allowed == "@"+part {
					return true
				}
			}
		}
	}
	return false
}

// HandleEvent verifies the sender is allowed, then pushes ev to the bus.
func (b *Base) HandleEvent(ctx context.Context, senderID string, ev bus.InboundEvent) {
	if !b.IsAllowed(senderID) {
		slog.Warn("access denied", "channel", b.channelName, "sender", senderID)
		return
	}
	ev.Channel = b.channelName
	if err := b.b.PublishInbound(ctx, ev); err != nil {
		slog.Warn("inbound dropped", "channel", b.channelName, "user", ev.UserID, "err", err)
	}
}

// splitMessage splits content into chunks that fit within maxLen runes,
// preferring newline breaks, then space breaks, then hard cut.
func splitMessage(content string, maxLen int) []string {
	runes := []rune(content)
	if len(runes) <= maxLen {
		return []string{content}
	}
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}
		cut := string(runes[:maxLen])
		pos := strings.LastIndex(cut, "\n")
		if pos <= 0 {
			pos = strings.LastIndex(cut, " ")
		}
		var head string
		if pos <= 0 {
			head = cut
		} else {
			head = cut[:pos]
		}
		chunks = append(chunks, head)
		runes = []rune(strings.TrimLeft(string(runes[len([]rune(head)):]), " \t\n"))
	}
	return chunks
}
