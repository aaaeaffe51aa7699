package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/crystaldolphin/confidant/internal/bus"
	"github.com/crystaldolphin/confidant/internal/delivery"
	"github.com/crystaldolphin/confidant/internal/persona"
	"github.com/crystaldolphin/confidant/internal/reengage"
	"github.com/crystaldolphin/confidant/internal/schema"
	"github.com/crystaldolphin/confidant/internal/session"
	"github.com/crystaldolphin/confidant/internal/storage"
	"github.com/crystaldolphin/confidant/internal/transfer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const user int64 = 42

type fakeTransport struct {
	mu        sync.Mutex
	texts     []string
	opts      []schema.SendOptions
	documents []string
	files     map[string][]byte
	blocked   bool
}

func (f *fakeTransport) SendText(_ context.Context, _ int64, text string, opts schema.SendOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blocked {
		return 0, schema.ErrBlocked
	}
	f.texts = append(f.texts, text)
	f.opts = append(f.opts, opts)
	return len(f.texts), nil
}

func (f *fakeTransport) SendDocument(_ context.Context, _ int64, name string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, name)
	return nil
}

func (f *fakeTransport) SendPresence(context.Context, int64) error { return nil }

func (f *fakeTransport) Reachable(context.Context, int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blocked {
		return schema.ErrBlocked
	}
	return nil
}

func (f *fakeTransport) FetchFile(_ context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[ref]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (f *fakeTransport) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func (f *fakeTransport) last() string {
	s := f.sent()
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

type fakeGenerator struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []schema.GenerateRequest

	// When gate is set, Generate signals entered and waits for gate.
	gate    chan struct{}
	entered chan struct{}
}

func (g *fakeGenerator) Generate(_ context.Context, req schema.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	gate, entered := g.gate, g.entered
	g.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "ok", nil
	}
	out := g.replies[0]
	g.replies = g.replies[1:]
	return out, nil
}

func (g *fakeGenerator) DefaultModel() string { return "test-model" }

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type harness struct {
	engine    *Engine
	store     *session.Store
	sched     *reengage.Scheduler
	transport *fakeTransport
	gen       *fakeGenerator
	bus       *bus.MessageBus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	store := session.NewStore(backend, session.Options{DefaultModel: "test-model"})
	sched := reengage.New(reengage.Options{}, nil)
	t.Cleanup(sched.Stop)

	tr := &fakeTransport{files: map[string][]byte{}}
	gen := &fakeGenerator{}
	b := bus.NewMessageBus(8)
	e := New(Deps{
		Bus:       b,
		Store:     store,
		Scheduler: sched,
		Transport: tr,
		Pacer:     delivery.NewPacer(tr, delivery.Config{PerChar: time.Microsecond, Heartbeat: time.Hour}),
		Generator: gen,
		Persona:   persona.NewLibrary(persona.Paths{}),
	}, Config{
		Models:       []string{"test-model", "other-model"},
		Reengagement: true,
		WebAppURL:    "https://example.org/",
	})
	return &harness{engine: e, store: store, sched: sched, transport: tr, gen: gen, bus: b}
}

func (h *harness) say(text string) {
	h.engine.Handle(context.Background(), bus.NewText("test", user, 1, text))
}

func (h *harness) welcomed() *harness {
	h.store.MarkWelcomed(user)
	return h
}

// blockedTurn starts a turn that stays inside generation until the
// returned finish func is called.
func (h *harness) blockedTurn(text string) (finish func()) {
	h.gen.mu.Lock()
	h.gen.gate = make(chan struct{})
	h.gen.entered = make(chan struct{}, 1)
	gate, entered := h.gen.gate, h.gen.entered
	h.gen.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.say(text)
	}()
	<-entered
	return func() {
		h.gen.mu.Lock()
		h.gen.gate, h.gen.entered = nil, nil
		h.gen.mu.Unlock()
		close(gate)
		<-done
	}
}

func TestWelcomeGate(t *testing.T) {
	h := newHarness(t)
	h.say("hello")

	assert.Equal(t, persona.DefaultWelcome, h.transport.last())
	assert.Zero(t, h.gen.calls())
}

func TestStartWelcomesUser(t *testing.T) {
	h := newHarness(t)
	h.say("/start")

	assert.True(t, h.store.GetOrCreate(user).Welcomed)
	assert.Equal(t, []string{persona.DefaultWelcome, noticeStarted}, h.transport.sent())
}

func TestTurnRepliesAndArmsTimer(t *testing.T) {
	h := newHarness(t).welcomed()
	h.gen.replies = []string{"first<split>second"}
	h.say("hi")

	assert.Equal(t, []string{"first", "second"}, h.transport.sent())
	history, err := h.store.History(context.Background(), user, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hi", history[0].Text())
	assert.Equal(t, schema.RoleModel, history[1].Role)

	st, err := h.store.Slot(user, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Interactions)
	assert.Zero(t, st.SpamCounter)
	assert.Equal(t, 2, st.ContextSize)

	_, armed := h.sched.Pending(session.Key{UserID: user, Slot: 0})
	assert.True(t, armed)
}

func TestTurnClampsLevel(t *testing.T) {
	h := newHarness(t).welcomed()
	h.gen.replies = []string{"<relationship level = 150>glad to see you"}
	h.say("hi")

	st, err := h.store.Slot(user, 0)
	require.NoError(t, err)
	assert.Equal(t, session.LevelMax, st.RelationshipLevel)
	assert.Equal(t, []string{"glad to see you"}, h.transport.sent())
}

func TestTurnSavesDiaryNotes(t *testing.T) {
	h := newHarness(t).welcomed()
	h.gen.replies = []string{"noted<remember: likes tea>"}
	h.say("I like tea")

	notes, err := h.store.Diary(context.Background(), user, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"likes tea"}, notes)
}

func TestBannedSlotSkipsGeneration(t *testing.T) {
	h := newHarness(t).welcomed()
	_, err := h.store.Update(user, 0, func(s *session.SlotState) { s.Banned = true })
	require.NoError(t, err)

	h.say("hi")

	assert.Zero(t, h.gen.calls())
	assert.Equal(t, noticeBanned, h.transport.last())
	_, armed := h.sched.Pending(session.Key{UserID: user, Slot: 0})
	assert.False(t, armed)
}

func TestProviderFailureRollsBack(t *testing.T) {
	h := newHarness(t).welcomed()
	h.gen.err = errors.New("quota")

	h.say("hi")

	history, err := h.store.History(context.Background(), user, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Equal(t, noticeApology, h.transport.last())
	st, _ := h.store.Slot(user, 0)
	assert.Zero(t, st.SpamCounter)
}

func TestEmptyReplyIsFailure(t *testing.T) {
	h := newHarness(t).welcomed()
	h.gen.replies = []string{"<think>hmm</think>  "}

	h.say("hi")

	assert.Equal(t, noticeApology, h.transport.last())
	history, _ := h.store.History(context.Background(), user, 0)
	assert.Empty(t, history)
}

func TestBusySlotEscalatesToSpam(t *testing.T) {
	h := newHarness(t).welcomed()
	release, ok := h.store.TryAcquire(user, 0)
	require.True(t, ok)
	defer release()

	h.say("one")
	h.say("two")
	h.say("three")

	assert.Equal(t, []string{noticeBusy, noticeBusy, noticeSpam}, h.transport.sent())
	assert.Zero(t, h.gen.calls())
}

func TestSlotSwitchArmsPreviousSlot(t *testing.T) {
	h := newHarness(t).welcomed()
	h.say("hi")
	h.sched.Cancel(session.Key{UserID: user, Slot: 0})
	h.sched.Rearm(session.Key{UserID: user, Slot: 1}, reengage.Plan{})

	h.say("/slot 2")

	assert.Equal(t, 1, h.store.GetOrCreate(user).ActiveSlot)
	_, prevArmed := h.sched.Pending(session.Key{UserID: user, Slot: 0})
	_, targetArmed := h.sched.Pending(session.Key{UserID: user, Slot: 1})
	assert.True(t, prevArmed)
	assert.False(t, targetArmed)
	assert.Contains(t, h.transport.sent(), "You switched to chat 2.")
}

func TestSlotSwitchRefusesBannedSlot(t *testing.T) {
	h := newHarness(t).welcomed()
	_, err := h.store.Update(user, 3, func(s *session.SlotState) { s.Banned = true })
	require.NoError(t, err)

	h.say("/slot 4")

	assert.Equal(t, 0, h.store.GetOrCreate(user).ActiveSlot)
	assert.Equal(t, noticeSlotBlocked, h.transport.last())
}

func TestSlotUsage(t *testing.T) {
	h := newHarness(t).welcomed()
	for _, arg := range []string{"/slot", "/slot 0", "/slot 9", "/slot x"} {
		h.say(arg)
		assert.Equal(t, noticeSlotUsage, h.transport.last(), arg)
	}
}

func TestPendingBioFlow(t *testing.T) {
	h := newHarness(t).welcomed()
	h.say("/bio")
	assert.Equal(t, session.PendingBio, h.store.GetOrCreate(user).Active().PendingInput)

	h.say(strings.Repeat("a", 701))
	assert.Equal(t, session.PendingBio, h.store.GetOrCreate(user).Active().PendingInput)
	assert.Contains(t, h.transport.last(), "700")

	h.say("/help")
	assert.Equal(t, "/help", h.store.GetOrCreate(user).Active().Bio)
	h.say("/bio")
	h.say("I write code")

	st := h.store.GetOrCreate(user).Active()
	assert.Equal(t, "I write code", st.Bio)
	assert.Equal(t, session.PendingNone, st.PendingInput)
	assert.Equal(t, noticeBioSaved, h.transport.last())
	assert.Zero(t, h.gen.calls())
}

func TestPendingCancelAndErase(t *testing.T) {
	h := newHarness(t).welcomed()
	_, _ = h.store.Update(user, 0, func(s *session.SlotState) { s.Character = "grumpy" })

	h.say("/character")
	h.say("/cancel")
	assert.Equal(t, "grumpy", h.store.GetOrCreate(user).Active().Character)
	assert.Equal(t, noticeCharCanceled, h.transport.last())

	h.say("/character")
	h.say("Erase")
	assert.Empty(t, h.store.GetOrCreate(user).Active().Character)
	assert.Equal(t, noticeCharErased, h.transport.last())
}

func TestImportThroughPendingInput(t *testing.T) {
	h := newHarness(t).welcomed()

	src := session.NewStore(mustFileStore(t), session.Options{})
	ctx := context.Background()
	_, err := src.Update(7, 0, func(s *session.SlotState) { s.RelationshipLevel = 33 })
	require.NoError(t, err)
	require.NoError(t, src.AppendHistory(ctx, 7, 0, schema.NewTextMessage(schema.RoleUser, "old")))
	_, data, err := transfer.Export(ctx, src, 7, 0, time.Now())
	require.NoError(t, err)
	h.transport.files["doc-1"] = data

	h.say("/import")
	h.engine.Handle(ctx, bus.InboundEvent{Kind: bus.KindDocument, UserID: user, Slot: bus.ActiveSlot, FileRef: "doc-1", MimeType: "application/json"})

	st := h.store.GetOrCreate(user).Active()
	assert.Equal(t, 33, st.RelationshipLevel)
	assert.Equal(t, session.PendingNone, st.PendingInput)
	history, err := h.store.History(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Contains(t, h.transport.sent(), noticeImportDone)
}

func TestImportRejectsMalformedDocument(t *testing.T) {
	h := newHarness(t).welcomed()
	h.transport.files["doc-1"] = []byte(`{"exportVersion": 9}`)

	h.say("/import")
	h.engine.Handle(context.Background(), bus.InboundEvent{Kind: bus.KindDocument, UserID: user, Slot: bus.ActiveSlot, FileRef: "doc-1", MimeType: "application/json"})

	assert.Equal(t, noticeImportBadForm, h.transport.last())
	assert.Equal(t, session.PendingNone, h.store.GetOrCreate(user).Active().PendingInput)
}

func TestDocumentOutsideImport(t *testing.T) {
	h := newHarness(t).welcomed()
	h.engine.Handle(context.Background(), bus.InboundEvent{Kind: bus.KindDocument, UserID: user, Slot: bus.ActiveSlot, FileRef: "x"})
	assert.Equal(t, noticeUnexpectedDocument, h.transport.last())
}

func TestExportSendsDocument(t *testing.T) {
	h := newHarness(t).welcomed()
	h.say("/export")
	require.Len(t, h.transport.documents, 1)
	assert.True(t, strings.HasPrefix(h.transport.documents[0], "export_chat_1_"))
}

func TestFirePublishesSilence(t *testing.T) {
	h := newHarness(t).welcomed()
	h.say("hi")

	h.engine.fire(context.Background(), session.Key{UserID: user, Slot: 0})

	select {
	case ev := <-h.bus.InboundChan():
		assert.Equal(t, bus.KindSentinel, ev.Kind)
		assert.Equal(t, SilenceInput, ev.Text)
		assert.Equal(t, 0, ev.Slot)
	default:
		t.Fatal("no event published")
	}
}

func TestFireTearsDownBlockedUser(t *testing.T) {
	h := newHarness(t).welcomed()
	h.say("hi")
	h.transport.blocked = true

	h.engine.fire(context.Background(), session.Key{UserID: user, Slot: 0})

	assert.False(t, h.store.Exists(user))
	assert.Zero(t, h.bus.InboundSize())
}

func TestSentinelRunsOnAddressedSlot(t *testing.T) {
	h := newHarness(t).welcomed()
	h.gen.replies = []string{"where are you?"}

	h.engine.Handle(context.Background(), bus.NewSentinel(user, 5, SilenceInput))

	history, err := h.store.History(context.Background(), user, 5)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, SilenceInput, history[0].Text())
	assert.Equal(t, 0, h.store.GetOrCreate(user).ActiveSlot)
}

func TestSentinelOnBusySlotDropped(t *testing.T) {
	h := newHarness(t).welcomed()
	release, ok := h.store.TryAcquire(user, 0)
	require.True(t, ok)
	defer release()

	h.engine.Handle(context.Background(), bus.NewSentinel(user, 0, SilenceInput))

	assert.Zero(t, h.gen.calls())
	assert.Empty(t, h.transport.sent())
}

func TestSetTimezone(t *testing.T) {
	h := newHarness(t).welcomed()
	h.say("hi")

	err := h.engine.SetTimezone(context.Background(), user, 900)
	assert.ErrorIs(t, err, schema.ErrValidation)

	require.NoError(t, h.engine.SetTimezone(context.Background(), user, 180))
	offset := h.store.GetOrCreate(user).UTCOffsetMinutes
	require.NotNil(t, offset)
	assert.Equal(t, 180, *offset)
	assert.Equal(t, noticeTimeSynced, h.transport.last())

	select {
	case ev := <-h.bus.InboundChan():
		assert.Equal(t, TimeSyncedInput, ev.Text)
	default:
		t.Fatal("no event published")
	}
}

func TestTimeLink(t *testing.T) {
	h := newHarness(t).welcomed()
	h.say("/time")
	assert.Contains(t, h.transport.last(), "https://example.org/tz-setup?chatId=42")
}

func TestModelCommand(t *testing.T) {
	h := newHarness(t).welcomed()
	h.say("/model other-model")
	assert.Equal(t, "other-model", h.store.GetOrCreate(user).Model)

	h.say("/model other-model")
	assert.Equal(t, noticeModelActive, h.transport.last())

	h.say("/model nope")
	assert.Contains(t, h.transport.last(), "Unknown model")
}

func TestBlockedUserTornDown(t *testing.T) {
	h := newHarness(t).welcomed()
	h.say("hi")
	h.transport.blocked = true

	h.say("again")

	assert.False(t, h.store.Exists(user))
	assert.Zero(t, h.sched.Len())
}

func TestStickerWithoutPreview(t *testing.T) {
	h := newHarness(t).welcomed()
	h.engine.Handle(context.Background(), bus.InboundEvent{Kind: bus.KindSticker, UserID: user, Slot: bus.ActiveSlot, Animated: true})
	assert.Equal(t, noticeNoPreview, h.transport.last())
}

func TestPhotoTurnCarriesInlineImage(t *testing.T) {
	h := newHarness(t).welcomed()
	h.transport.files["p1"] = []byte("jpeg-bytes")

	h.engine.Handle(context.Background(), bus.InboundEvent{Kind: bus.KindImage, UserID: user, Slot: bus.ActiveSlot, FileRef: "p1", MimeType: "image/jpeg"})

	require.Equal(t, 1, h.gen.calls())
	turns := h.gen.requests[0].Turns
	last := turns[len(turns)-1]
	require.Len(t, last.Parts, 2)
	assert.Equal(t, promptPhoto, last.Parts[0].Text)
	assert.Equal(t, "image/jpeg", last.Parts[1].InlineData.MimeType)
}

func TestAnimationWithoutDecoder(t *testing.T) {
	h := newHarness(t).welcomed()
	h.engine.Handle(context.Background(), bus.InboundEvent{Kind: bus.KindAnimation, UserID: user, Slot: bus.ActiveSlot, FileRef: "a"})
	assert.Equal(t, noticeNoAnimations, h.transport.last())
}

func TestVoiceTranscribedThenAnswered(t *testing.T) {
	h := newHarness(t).welcomed()
	h.transport.files["v1"] = []byte("ogg")
	h.gen.replies = []string{" hello there ", "hi!"}

	h.engine.Handle(context.Background(), bus.InboundEvent{Kind: bus.KindVoice, UserID: user, Slot: bus.ActiveSlot, FileRef: "v1", MessageID: 9})

	require.Equal(t, 2, h.gen.calls())
	history, _ := h.store.History(context.Background(), user, 0)
	require.Len(t, history, 2)
	assert.Equal(t, "hello there", history[0].Text())
	assert.Equal(t, []string{noticeListening, "hi!"}, h.transport.sent())
	assert.Equal(t, 9, h.transport.opts[1].ReplyTo)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t).welcomed()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()

	require.NoError(t, h.bus.PublishInbound(ctx, bus.NewText("test", user, 1, "/stats")))
	require.Eventually(t, func() bool { return len(h.transport.sent()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func mustFileStore(t *testing.T) storage.Backend {
	t.Helper()
	backend, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return backend
}

func TestMessageCancelsIdleTimerEvenWhenTurnFails(t *testing.T) {
	h := newHarness(t).welcomed()
	key := session.Key{UserID: user, Slot: 0}
	h.sched.Rearm(key, reengage.Plan{})
	h.gen.err = errors.New("quota")

	h.say("I am here")

	assert.Equal(t, noticeApology, h.transport.last())
	_, armed := h.sched.Pending(key)
	assert.False(t, armed)
}

func TestBusyMessageCancelsIdleTimer(t *testing.T) {
	h := newHarness(t).welcomed()
	key := session.Key{UserID: user, Slot: 0}
	release, ok := h.store.TryAcquire(user, 0)
	require.True(t, ok)
	defer release()
	h.sched.Rearm(key, reengage.Plan{})

	h.say("hello?")

	assert.Equal(t, noticeBusy, h.transport.last())
	_, armed := h.sched.Pending(key)
	assert.False(t, armed)
}

func TestClearWaitsForRunningTurn(t *testing.T) {
	h := newHarness(t).welcomed()
	finish := h.blockedTurn("hi")

	h.say("/clear")
	assert.Equal(t, noticeBusy, h.transport.last())

	finish()
	history, err := h.store.History(context.Background(), user, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, schema.RoleUser, history[0].Role)

	h.say("/clear")
	history, err = h.store.History(context.Background(), user, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	_, armed := h.sched.Pending(session.Key{UserID: user, Slot: 0})
	assert.False(t, armed)
}

func TestSettingWaitsForRunningTurn(t *testing.T) {
	h := newHarness(t).welcomed()
	finish := h.blockedTurn("hi")

	h.say("/bio")
	h.say("I write code")
	assert.Equal(t, noticeBusy, h.transport.last())
	st := h.store.GetOrCreate(user).Active()
	assert.Equal(t, session.PendingBio, st.PendingInput)
	assert.Empty(t, st.Bio)

	finish()
	h.say("I write code")
	st = h.store.GetOrCreate(user).Active()
	assert.Equal(t, "I write code", st.Bio)
	assert.Equal(t, noticeBioSaved, h.transport.last())
	history, _ := h.store.History(context.Background(), user, 0)
	assert.Empty(t, history)
}

func TestImportWaitsForRunningTurn(t *testing.T) {
	h := newHarness(t).welcomed()
	h.transport.files["doc-1"] = []byte(`{"exportVersion": 9}`)
	finish := h.blockedTurn("hi")
	defer finish()

	h.say("/import")
	h.engine.Handle(context.Background(), bus.InboundEvent{Kind: bus.KindDocument, UserID: user, Slot: bus.ActiveSlot, FileRef: "doc-1", MimeType: "application/json"})

	assert.Equal(t, noticeBusy, h.transport.last())
	assert.Equal(t, session.PendingImport, h.store.GetOrCreate(user).Active().PendingInput)
}

func TestFireSkipsBusySlot(t *testing.T) {
	h := newHarness(t).welcomed()
	h.say("hi")
	release, ok := h.store.TryAcquire(user, 0)
	require.True(t, ok)
	defer release()

	h.engine.fire(context.Background(), session.Key{UserID: user, Slot: 0})

	assert.Zero(t, h.bus.InboundSize())
}

func TestContextSizeAfterTrim(t *testing.T) {
	backend, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	h := newHarness(t).welcomed()
	h.store = session.NewStore(backend, session.Options{DefaultModel: "test-model", TrimAbove: 4, TrimTo: 2})
	h.engine.store = h.store
	h.store.MarkWelcomed(user)

	h.say("one")
	h.say("two")
	h.say("three")

	st, err := h.store.Slot(user, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, st.ContextSize)
}

func TestSlotsMenuPicksByNumber(t *testing.T) {
	h := newHarness(t).welcomed()
	h.say("/slots")
	assert.Equal(t, session.MenuSlots, h.store.GetOrCreate(user).Menu)
	assert.Contains(t, h.transport.last(), noticeSlotsPick)

	h.say("3")

	sess := h.store.GetOrCreate(user)
	assert.Equal(t, 2, sess.ActiveSlot)
	assert.Equal(t, session.MenuMain, sess.Menu)
	assert.Zero(t, h.gen.calls())

	h.say("3")
	assert.Equal(t, 1, h.gen.calls(), "outside a menu a number is a message")
}

func TestModelsMenuPicksByNumber(t *testing.T) {
	h := newHarness(t).welcomed()
	h.say("/model")
	assert.Contains(t, h.transport.last(), "2. other-model")

	h.say("2")
	assert.Equal(t, "other-model", h.store.GetOrCreate(user).Model)

	h.say("/model")
	h.say("hello")
	assert.Equal(t, session.MenuMain, h.store.GetOrCreate(user).Menu)
	assert.Equal(t, 1, h.gen.calls())
}
