package narrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/confidant/internal/schema"
	"github.com/crystaldolphin/confidant/internal/session"
)

type fakeGenerator struct {
	reply string
	err   error
	reqs  []schema.GenerateRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req schema.GenerateRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

func (f *fakeGenerator) DefaultModel() string { return "test-model" }

type staticPrompt string

func (s staticPrompt) NarratorPrompt() string { return string(s) }

func slotWith(directive string, turns int) session.SlotState {
	st := session.DefaultSlotState()
	st.NarratorDirective = directive
	st.NarratorTurns = turns
	return st
}

func TestDueCadence(t *testing.T) {
	a := New(&fakeGenerator{}, nil, Config{Cadence: 2})
	assert.False(t, a.Due(slotWith("goal", 0)))
	assert.False(t, a.Due(slotWith("goal", 1)))
	assert.True(t, a.Due(slotWith("goal", 2)))
	assert.False(t, a.Due(slotWith("goal", 3)))
	assert.True(t, a.Due(slotWith("goal", 4)))
	assert.False(t, a.Due(slotWith("  ", 4)))
}

func TestScriptStripsTagsAndEmptyLines(t *testing.T) {
	a := New(&fakeGenerator{}, nil, Config{UserLabel: "U", PersonaLabel: "P"})
	script := a.Script([]schema.Message{
		schema.NewTextMessage(schema.RoleUser, "hello"),
		schema.NewTextMessage(schema.RoleModel, "<moodlet: ok>"),
		schema.NewTextMessage(schema.RoleModel, "hi <relationship level = 3>there"),
	})
	assert.Equal(t, "U: hello\nP: hi there", script)
}

func TestAugmentWrapsInput(t *testing.T) {
	gen := &fakeGenerator{reply: "  be dramatic  "}
	a := New(gen, staticPrompt("you are the narrator"), Config{})

	out := a.Augment(context.Background(), "m1", slotWith("make her sad", 2), nil, "how are you?")
	assert.Equal(t, "[NARRATOR INSTRUCTION]: be dramatic\n\n[USER MESSAGE]: how are you?", out)

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, "m1", gen.reqs[0].Model)
	assert.Equal(t, "you are the narrator", gen.reqs[0].SystemInstruction)
	assert.Contains(t, gen.reqs[0].Turns[0].Text(), `"make her sad"`)
}

func TestAugmentNotDue(t *testing.T) {
	gen := &fakeGenerator{reply: "x"}
	a := New(gen, nil, Config{})
	assert.Equal(t, "in", a.Augment(context.Background(), "m", slotWith("goal", 1), nil, "in"))
	assert.Empty(t, gen.reqs)
}

func TestAugmentFailureIsNonFatal(t *testing.T) {
	gen := &fakeGenerator{err: schema.ErrEmptyResponse}
	a := New(gen, nil, Config{})
	assert.Equal(t, "in", a.Augment(context.Background(), "m", slotWith("goal", 2), nil, "in"))

	_, err := a.Steer(context.Background(), "m", slotWith("goal", 2), nil)
	assert.True(t, errors.Is(err, schema.ErrProvider))
}
