// Package session holds per-user conversation state: eight independent
// slots per user, each with relational state, history and a diary.
package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SlotCount is the number of dialogue slots every user owns.
const SlotCount = 8

const (
	LevelMin = -100
	LevelMax = 100
)

// Defaults for a fresh slot.
const (
	DefaultStatus  = "Незнакомец"
	DefaultMoodlet = "В норме"
)

// Menu contexts. A numbered listing puts the user in its context so a bare
// number picks an entry from it.
const (
	MenuMain   = "main"
	MenuSlots  = "slots"
	MenuModels = "models"
)

// ReengageState selects the idle window used for a slot.
type ReengageState string

const (
	ReengageDefault  ReengageState = "default"
	ReengageFarewell ReengageState = "farewell"
)

// UnmarshalJSON accepts the legacy value "goodbye" as farewell.
func (s *ReengageState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "farewell", "goodbye":
		*s = ReengageFarewell
	default:
		*s = ReengageDefault
	}
	return nil
}

// PendingInput names what the next plain text message will be consumed as.
type PendingInput string

const (
	PendingNone      PendingInput = "none"
	PendingBio       PendingInput = "awaiting-bio"
	PendingCharacter PendingInput = "awaiting-character"
	PendingNarrator  PendingInput = "awaiting-narrator"
	PendingImport    PendingInput = "awaiting-import"
)

// Key identifies one slot of one user.
type Key struct {
	UserID int64
	Slot   int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.UserID, k.Slot)
}

// SlotState is the relational and bookkeeping state of one slot.
// Timers and the in-flight flag are owned elsewhere and never serialised.
type SlotState struct {
	Interactions       int           `json:"interactions"`
	LastActive         time.Time     `json:"-"`
	ContextSize        int           `json:"contextSize"`
	SpamCounter        int           `json:"spamCounter"`
	RelationshipLevel  int           `json:"relationshipLevel"`
	RelationshipStatus string        `json:"relationshipStatus"`
	Moodlet            string        `json:"moodlet"`
	Banned             bool          `json:"isBanned"`
	Reengagement       ReengageState `json:"ignoreState"`
	PendingInput       PendingInput  `json:"pendingInput"`
	Bio                string        `json:"userBio"`
	Character          string        `json:"characterDescription"`
	NarratorDirective  string        `json:"narratorPrompt"`
	NarratorTurns      int           `json:"narratorInterventionCounter"`
}

// DefaultSlotState returns the state of a slot nobody has talked to.
func DefaultSlotState() SlotState {
	return SlotState{
		RelationshipStatus: DefaultStatus,
		Moodlet:            DefaultMoodlet,
		Reengagement:       ReengageDefault,
		PendingInput:       PendingNone,
	}
}

type slotStateJSON SlotState

type slotStateWire struct {
	slotStateJSON
	LastActive json.RawMessage `json:"lastActive,omitempty"`
}

// MarshalJSON writes lastActive as Unix milliseconds.
func (s SlotState) MarshalJSON() ([]byte, error) {
	var ms int64
	if !s.LastActive.IsZero() {
		ms = s.LastActive.UnixMilli()
	}
	raw, _ := json.Marshal(ms)
	return json.Marshal(slotStateWire{slotStateJSON: slotStateJSON(s), LastActive: raw})
}

// UnmarshalJSON decodes over the receiver, so callers can merge a partial
// document onto DefaultSlotState. lastActive may be Unix milliseconds or
// an RFC 3339 string.
func (s *SlotState) UnmarshalJSON(data []byte) error {
	wire := slotStateWire{slotStateJSON: slotStateJSON(*s)}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = SlotState(wire.slotStateJSON)
	if len(wire.LastActive) == 0 || string(wire.LastActive) == "null" {
		return nil
	}
	var ms int64
	if err := json.Unmarshal(wire.LastActive, &ms); err == nil {
		if ms > 0 {
			s.LastActive = time.UnixMilli(ms)
		} else {
			s.LastActive = time.Time{}
		}
		return nil
	}
	var ts time.Time
	if err := json.Unmarshal(wire.LastActive, &ts); err != nil {
		return fmt.Errorf("lastActive: %w", err)
	}
	s.LastActive = ts
	return nil
}

// Normalize clamps the level and fills blank enum fields.
func (s *SlotState) Normalize() {
	s.RelationshipLevel = ClampLevel(s.RelationshipLevel)
	if s.Reengagement != ReengageFarewell {
		s.Reengagement = ReengageDefault
	}
	if s.PendingInput == "" {
		s.PendingInput = PendingNone
	}
}

// ClampLevel bounds v to [LevelMin, LevelMax].
func ClampLevel(v int) int {
	return min(max(v, LevelMin), LevelMax)
}

// UserSession is everything known about one user.
type UserSession struct {
	ActiveSlot          int                  `json:"activeChatSlot"`
	Slots               [SlotCount]SlotState `json:"slots"`
	Debug               bool                 `json:"debugMode"`
	ReengagementEnabled bool                 `json:"ignoreTimerEnabled"`
	Model               string               `json:"selectedModel"`
	UTCOffsetMinutes    *int                 `json:"utcOffsetMinutes,omitempty"`
	Menu                string               `json:"currentMenu"`
	Welcomed            bool                 `json:"hasCompletedWelcome"`
}

// NewUserSession returns a session with eight default slots.
func NewUserSession(model string) UserSession {
	u := UserSession{
		ReengagementEnabled: true,
		Model:               model,
		Menu:                MenuMain,
	}
	for i := range u.Slots {
		u.Slots[i] = DefaultSlotState()
	}
	return u
}

// Active returns the state of the active slot.
func (u UserSession) Active() SlotState {
	return u.Slots[u.ActiveSlot]
}

// ValidSlot reports whether index addresses a slot.
func ValidSlot(index int) bool {
	return index >= 0 && index < SlotCount
}
