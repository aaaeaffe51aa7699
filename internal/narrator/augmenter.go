// Package narrator periodically asks the model for a short steering
// instruction that nudges the persona toward a user-defined goal.
package narrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crystaldolphin/confidant/internal/directive"
	"github.com/crystaldolphin/confidant/internal/schema"
	"github.com/crystaldolphin/confidant/internal/session"
)

// Rule is appended to the persona's system instruction while a narrator
// directive is set.
const Rule = "[NARRATOR RULE]: Sometimes the user message is preceded by a system instruction " +
	"from the Narrator, written as [NARRATOR INSTRUCTION]: ... You must follow it. It has the " +
	"highest priority and defines the context, emotions and direction of your next reply."

// PromptSource provides the narrator's system instruction.
type PromptSource interface {
	NarratorPrompt() string
}

// Config tunes an Augmenter.
type Config struct {
	// Cadence is how many user turns pass between interventions.
	Cadence      int
	UserLabel    string
	PersonaLabel string
}

// Augmenter produces steering instructions.
type Augmenter struct {
	gen     schema.Generator
	prompts PromptSource
	cfg     Config
}

// New creates an Augmenter.
func New(gen schema.Generator, prompts PromptSource, cfg Config) *Augmenter {
	if cfg.Cadence <= 0 {
		cfg.Cadence = 2
	}
	if cfg.UserLabel == "" {
		cfg.UserLabel = "User"
	}
	if cfg.PersonaLabel == "" {
		cfg.PersonaLabel = "Persona"
	}
	return &Augmenter{gen: gen, prompts: prompts, cfg: cfg}
}

// Due reports whether the slot's turn counter calls for an intervention.
func (a *Augmenter) Due(st session.SlotState) bool {
	if strings.TrimSpace(st.NarratorDirective) == "" {
		return false
	}
	return st.NarratorTurns > 0 && st.NarratorTurns%a.cfg.Cadence == 0
}

// Script renders history as labelled lines with tags removed. Entries with
// no text left are skipped.
func (a *Augmenter) Script(history []schema.Message) string {
	var b strings.Builder
	for _, m := range history {
		text := directive.Strip(m.Text())
		if text == "" {
			continue
		}
		label := a.cfg.PersonaLabel
		if m.Role == schema.RoleUser {
			label = a.cfg.UserLabel
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", label, text)
	}
	return b.String()
}

// Steer asks the model for an instruction. An empty result with a nil
// error means the model had nothing to say.
func (a *Augmenter) Steer(ctx context.Context, model string, st session.SlotState, history []schema.Message) (string, error) {
	prompt := fmt.Sprintf("[DIALOGUE HISTORY]:\n---\n%s\n---\n\n[USER'S MAIN GOAL]:\n%q\n\n[YOUR ORDER FOR THE PERSONA]:\n",
		a.Script(history), st.NarratorDirective)

	var system string
	if a.prompts != nil {
		system = a.prompts.NarratorPrompt()
	}
	req := schema.NewGenerateRequest(model, system, []schema.Message{schema.NewTextMessage(schema.RoleUser, prompt)})
	out, err := a.gen.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("narrator: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Augment returns input wrapped with a fresh instruction when one is due.
// Failures are logged and the input is returned unchanged.
func (a *Augmenter) Augment(ctx context.Context, model string, st session.SlotState, history []schema.Message, input string) string {
	if !a.Due(st) {
		return input
	}
	instruction, err := a.Steer(ctx, model, st, history)
	if err != nil {
		slog.Warn("narrator: steering failed", "err", err)
		return input
	}
	if instruction == "" {
		return input
	}
	slog.Info("narrator: instruction issued", "len", len(instruction))
	return Wrap(instruction, input)
}

// Wrap prefixes input with a narrator instruction.
func Wrap(instruction, input string) string {
	return "[NARRATOR INSTRUCTION]: " + instruction + "\n\n[USER MESSAGE]: " + input
}
