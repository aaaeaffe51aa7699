package directive

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/crystaldolphin/confidant/internal/schema"
	"github.com/crystaldolphin/confidant/internal/session"
)

// Outcome collects side effects that live outside the slot state.
type Outcome struct {
	// Diary holds notes to append, in order.
	Diary []string
	// Applied lists the canonical names of commands that took effect.
	Applied []string
	// Ignored counts malformed or unknown tags.
	Ignored int
}

// Handler applies one command to a slot. A returned error marks the
// command as malformed; it is logged and skipped.
type Handler func(st *session.SlotState, arg string, out *Outcome) error

type entry struct {
	canonical string
	handler   Handler
}

// Registry maps command names (and aliases) to handlers.
type Registry struct {
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register binds name and its aliases to h. Later registrations win.
func (r *Registry) Register(name string, h Handler, aliases ...string) {
	canonical := NormalizeName(name)
	e := entry{canonical: canonical, handler: h}
	r.entries[canonical] = e
	for _, a := range aliases {
		r.entries[NormalizeName(a)] = e
	}
}

// Apply runs cmds against st in order. Scalars end up with the last value
// written; each note is appended to the outcome.
func (r *Registry) Apply(st *session.SlotState, cmds []Command) Outcome {
	var out Outcome
	for _, c := range cmds {
		if IsSplitMarker(c) {
			continue
		}
		e, ok := r.entries[c.Name]
		if !ok {
			out.Ignored++
			slog.Debug("directive: unknown tag", "tag", c.Raw)
			continue
		}
		if err := e.handler(st, c.Arg, &out); err != nil {
			out.Ignored++
			slog.Warn("directive: malformed tag", "tag", c.Raw, "err", err)
			continue
		}
		out.Applied = append(out.Applied, e.canonical)
	}
	return out
}

// ApplyText parses text and applies the result.
func (r *Registry) ApplyText(st *session.SlotState, text string) Outcome {
	return r.Apply(st, Parse(text))
}

// Canonical command names.
const (
	CmdLevel    = "relationship level"
	CmdStatus   = "relationship status"
	CmdMoodlet  = "moodlet"
	CmdBan      = "ban"
	CmdFarewell = "farewell"
	CmdPresent  = "present"
	CmdRemember = "remember"
)

// DefaultRegistry returns the persona vocabulary, including the Russian
// names used by existing prompt packs.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(CmdLevel, setLevel, "уровень отношений", "set relationship level")
	r.Register(CmdStatus, setStatus, "изменить статус отношений на", "set relationship status")
	r.Register(CmdMoodlet, setMoodlet, "установить мудлет на", "set moodlet")
	r.Register(CmdBan, ban, "дать бан")
	r.Register(CmdFarewell, farewell, "пользователь попрощался")
	r.Register(CmdPresent, present, "пользователь в сети")
	r.Register(CmdRemember, remember, "запомнить информацию")
	return r
}

func setLevel(st *session.SlotState, arg string, _ *Outcome) error {
	v, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return fmt.Errorf("%w: level %q", schema.ErrValidation, arg)
	}
	st.RelationshipLevel = session.ClampLevel(v)
	return nil
}

func setStatus(st *session.SlotState, arg string, _ *Outcome) error {
	if arg == "" {
		return fmt.Errorf("%w: empty status", schema.ErrValidation)
	}
	st.RelationshipStatus = arg
	return nil
}

func setMoodlet(st *session.SlotState, arg string, _ *Outcome) error {
	if arg == "" {
		return fmt.Errorf("%w: empty moodlet", schema.ErrValidation)
	}
	st.Moodlet = arg
	return nil
}

func ban(st *session.SlotState, _ string, _ *Outcome) error {
	st.Banned = true
	return nil
}

func farewell(st *session.SlotState, _ string, _ *Outcome) error {
	st.Reengagement = session.ReengageFarewell
	return nil
}

func present(st *session.SlotState, _ string, _ *Outcome) error {
	st.Reengagement = session.ReengageDefault
	return nil
}

func remember(_ *session.SlotState, arg string, out *Outcome) error {
	if arg == "" {
		return fmt.Errorf("%w: empty note", schema.ErrValidation)
	}
	out.Diary = append(out.Diary, arg)
	return nil
}
