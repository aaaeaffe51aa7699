// Package transfer exports a slot to a portable JSON bundle and imports
// one back.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crystaldolphin/confidant/internal/schema"
	"github.com/crystaldolphin/confidant/internal/session"
)

// Version is the only bundle version Import accepts.
const Version = 1

// Bundle is the export document.
type Bundle struct {
	ExportVersion int               `json:"exportVersion"`
	ExportedAt    time.Time         `json:"exportedAt"`
	SlotState     session.SlotState `json:"slotState"`
	History       []schema.Message  `json:"history"`
}

// Canceler drops a pending reengagement timer.
type Canceler interface {
	Cancel(key session.Key)
}

// Export snapshots a slot. The returned bytes are the indented JSON form.
func Export(ctx context.Context, store *session.Store, userID int64, slot int, now time.Time) (Bundle, []byte, error) {
	st, err := store.Slot(userID, slot)
	if err != nil {
		return Bundle{}, nil, err
	}
	history, err := store.History(ctx, userID, slot)
	if err != nil {
		return Bundle{}, nil, fmt.Errorf("export: %w", err)
	}
	if history == nil {
		history = []schema.Message{}
	}
	b := Bundle{
		ExportVersion: Version,
		ExportedAt:    now.UTC(),
		SlotState:     st,
		History:       history,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return Bundle{}, nil, fmt.Errorf("export: encode: %w", err)
	}
	return b, buf.Bytes(), nil
}

// FileName is the document name offered for an export of slot.
func FileName(slot int, now time.Time) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format("2006-01-02T15:04:05.000Z"))
	return fmt.Sprintf("export_chat_%d_%s.json", slot+1, ts)
}

// Parse validates data and returns the bundle it holds. The slot state is
// merged over defaults so fields missing from older exports keep their
// default values.
func Parse(data []byte) (Bundle, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Bundle{}, fmt.Errorf("%w: not a JSON object: %v", schema.ErrValidation, err)
	}

	var version int
	if err := json.Unmarshal(raw["exportVersion"], &version); err != nil || version != Version {
		return Bundle{}, fmt.Errorf("%w: unsupported export version", schema.ErrValidation)
	}

	stateRaw := bytes.TrimSpace(raw["slotState"])
	if len(stateRaw) == 0 || stateRaw[0] != '{' {
		return Bundle{}, fmt.Errorf("%w: slotState must be an object", schema.ErrValidation)
	}
	st := session.DefaultSlotState()
	if err := json.Unmarshal(stateRaw, &st); err != nil {
		return Bundle{}, fmt.Errorf("%w: slotState: %v", schema.ErrValidation, err)
	}

	histRaw := bytes.TrimSpace(raw["history"])
	if len(histRaw) == 0 || histRaw[0] != '[' {
		return Bundle{}, fmt.Errorf("%w: history must be an array", schema.ErrValidation)
	}
	var history []schema.Message
	if err := json.Unmarshal(histRaw, &history); err != nil {
		return Bundle{}, fmt.Errorf("%w: history: %v", schema.ErrValidation, err)
	}
	for i := range history {
		if history[i].Role == "assistant" {
			history[i].Role = schema.RoleModel
		}
		if !schema.ValidRole(history[i].Role) {
			return Bundle{}, fmt.Errorf("%w: history[%d] has role %q", schema.ErrValidation, i, history[i].Role)
		}
		if history[i].Parts == nil {
			history[i].Parts = []schema.Part{}
		}
	}

	var exportedAt time.Time
	_ = json.Unmarshal(raw["exportedAt"], &exportedAt)

	return Bundle{
		ExportVersion: version,
		ExportedAt:    exportedAt,
		SlotState:     st,
		History:       history,
	}, nil
}

// Import replaces a slot with the bundle in data. Nothing changes when the
// bundle is invalid. Transient counters are reset, pending input is
// cleared and any reengagement timer for the slot is canceled.
func Import(ctx context.Context, store *session.Store, sched Canceler, userID int64, slot int, data []byte) (session.SlotState, error) {
	if !session.ValidSlot(slot) {
		return session.SlotState{}, fmt.Errorf("%w: slot %d out of range", schema.ErrValidation, slot)
	}
	b, err := Parse(data)
	if err != nil {
		return session.SlotState{}, err
	}

	if err := store.ReplaceHistory(ctx, userID, slot, b.History); err != nil {
		return session.SlotState{}, fmt.Errorf("import: %w", err)
	}
	st, err := store.Update(userID, slot, func(s *session.SlotState) {
		*s = b.SlotState
		s.PendingInput = session.PendingNone
		s.SpamCounter = 0
		s.ContextSize = len(b.History)
	})
	if err != nil {
		return session.SlotState{}, err
	}
	if sched != nil {
		sched.Cancel(session.Key{UserID: userID, Slot: slot})
	}

	slog.Info("transfer: imported", "user", userID, "slot", slot, "entries", len(b.History))
	return st, nil
}
