package directive

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/confidant/internal/session"
)

func TestParseGrammar(t *testing.T) {
	cmds := Parse("Hi! <Relationship  Level = 20> and <moodlet: Happy> <ban>")
	require.Len(t, cmds, 3)

	assert.Equal(t, "relationship level", cmds[0].Name)
	assert.Equal(t, "20", cmds[0].Arg)
	assert.True(t, cmds[0].HasArg)

	assert.Equal(t, "moodlet", cmds[1].Name)
	assert.Equal(t, "Happy", cmds[1].Arg)

	assert.Equal(t, "ban", cmds[2].Name)
	assert.False(t, cmds[2].HasArg)
	assert.Equal(t, "<ban>", cmds[2].Raw)
}

func TestParseNoTags(t *testing.T) {
	assert.Nil(t, Parse("just words, 3 < 4"))
}

func TestApplyLevelClamped(t *testing.T) {
	st := session.DefaultSlotState()
	out := DefaultRegistry().ApplyText(&st, "<Уровень отношений = 150>")
	assert.Equal(t, 100, st.RelationshipLevel)
	assert.Equal(t, []string{CmdLevel}, out.Applied)

	DefaultRegistry().ApplyText(&st, "<relationship level: -999>")
	assert.Equal(t, -100, st.RelationshipLevel)
}

func TestApplyClampProperty(t *testing.T) {
	r := DefaultRegistry()
	for v := -1000; v <= 1000; v += 37 {
		st := session.DefaultSlotState()
		r.Apply(&st, []Command{{Name: CmdLevel, Arg: strconv.Itoa(v), HasArg: true}})
		assert.GreaterOrEqual(t, st.RelationshipLevel, session.LevelMin)
		assert.LessOrEqual(t, st.RelationshipLevel, session.LevelMax)
	}
}

func TestApplyLastWriteWins(t *testing.T) {
	st := session.DefaultSlotState()
	DefaultRegistry().ApplyText(&st, "<moodlet: sad> text <Установить мудлет на: Радость> <relationship status: Friend>")
	assert.Equal(t, "Радость", st.Moodlet)
	assert.Equal(t, "Friend", st.RelationshipStatus)
}

func TestApplyRussianVocabulary(t *testing.T) {
	st := session.DefaultSlotState()
	out := DefaultRegistry().ApplyText(&st,
		"<Изменить статус отношений на: Друг> <Пользователь попрощался> <Запомнить информацию: любит чай> <Дать бан>")

	assert.Equal(t, "Друг", st.RelationshipStatus)
	assert.Equal(t, session.ReengageFarewell, st.Reengagement)
	assert.True(t, st.Banned)
	assert.Equal(t, []string{"любит чай"}, out.Diary)

	DefaultRegistry().ApplyText(&st, "<Пользователь в сети>")
	assert.Equal(t, session.ReengageDefault, st.Reengagement)
}

func TestApplyIgnoresMalformedAndUnknown(t *testing.T) {
	st := session.DefaultSlotState()
	st.RelationshipLevel = 5
	out := DefaultRegistry().ApplyText(&st, "<relationship level = lots> <remember:   > <dance> <split>")

	assert.Equal(t, 5, st.RelationshipLevel)
	assert.Empty(t, out.Diary)
	assert.Empty(t, out.Applied)
	// The split marker is presentation, not an error.
	assert.Equal(t, 3, out.Ignored)
}

func TestRememberAppendsInOrder(t *testing.T) {
	st := session.DefaultSlotState()
	out := DefaultRegistry().ApplyText(&st, "<remember: a> <remember: b>")
	assert.Equal(t, []string{"a", "b"}, out.Diary)
}

func TestRegisterAlias(t *testing.T) {
	r := NewRegistry()
	r.Register("Wink", func(st *session.SlotState, _ string, _ *Outcome) error {
		st.Moodlet = "winking"
		return nil
	}, "подмигнуть")

	st := session.DefaultSlotState()
	out := r.ApplyText(&st, "<  ПОДМИГНУТЬ >")
	assert.Equal(t, []string{"wink"}, out.Applied)
	assert.Equal(t, "winking", st.Moodlet)
}

func TestStripAndSplit(t *testing.T) {
	raw := "Hello <moodlet: ok>there<split>second <Разделить сообщение> third"
	parts := Split(raw)
	require.Len(t, parts, 3)
	assert.Equal(t, "Hello <moodlet: ok>there", parts[0])
	assert.Equal(t, "Hello there", Strip(parts[0]))
	assert.Equal(t, "third", Strip(parts[2]))

	assert.Equal(t, 10, StrippedLen("Hello<x>there"))
	assert.Equal(t, []string{"only"}, Split("only"))
}
