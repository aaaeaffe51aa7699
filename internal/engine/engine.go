// Package engine runs the conversation pipeline: it consumes inbound
// events, drives one generation turn per message and delivers the reply.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/crystaldolphin/confidant/internal/bus"
	"github.com/crystaldolphin/confidant/internal/delivery"
	"github.com/crystaldolphin/confidant/internal/directive"
	"github.com/crystaldolphin/confidant/internal/metrics"
	"github.com/crystaldolphin/confidant/internal/narrator"
	"github.com/crystaldolphin/confidant/internal/persona"
	"github.com/crystaldolphin/confidant/internal/reengage"
	"github.com/crystaldolphin/confidant/internal/schema"
	"github.com/crystaldolphin/confidant/internal/session"
)

// Inputs the engine feeds through the turn pipeline on its own behalf.
// Persona prompts refer to them verbatim.
const (
	SilenceInput    = "<Игнор от пользователя>"
	TimeForgotInput = "<Время забыто>"
	TimeSyncedInput = "<Время только что синхронизировано>"
)

func isSentinel(text string) bool {
	switch text {
	case SilenceInput, TimeForgotInput, TimeSyncedInput:
		return true
	}
	return false
}

// Limits cap user-supplied settings and media.
type Limits struct {
	Bio        int
	Character  int
	Narrator   int
	ImageBytes int64
	VoiceBytes int64
}

// Config tunes an Engine.
type Config struct {
	// Models are the choices offered by /model.
	Models []string
	// ShowStats sends the relationship summary after every reply.
	ShowStats bool
	// SpamThreshold is how many unanswered messages are tolerated.
	SpamThreshold int
	// Reengagement is the global switch for idle timers.
	Reengagement bool
	// WebAppURL hosts the time zone page; empty disables /time.
	WebAppURL string
	Limits    Limits
}

// Deps are the collaborators an Engine drives. Frames may be nil, which
// disables animation turns.
type Deps struct {
	Bus        bus.Bus
	Store      *session.Store
	Scheduler  *reengage.Scheduler
	Transport  schema.Transport
	Pacer      *delivery.Pacer
	Generator  schema.Generator
	Narrator   *narrator.Augmenter
	Persona    *persona.Library
	Directives *directive.Registry
	Frames     schema.FrameDecoder
	Metrics    *metrics.Metrics
}

// Engine is the core processing loop.
//
// It reads InboundEvents from the bus and handles each in its own
// goroutine. Turns on the same slot are serialised by the store's turn
// token; different users and slots never wait for each other.
type Engine struct {
	bus        bus.Bus
	store      *session.Store
	sched      *reengage.Scheduler
	transport  schema.Transport
	pacer      *delivery.Pacer
	gen        schema.Generator
	narrator   *narrator.Augmenter
	persona    *persona.Library
	directives *directive.Registry
	frames     schema.FrameDecoder
	metrics    *metrics.Metrics

	cfg Config
	now func() time.Time
	wg  sync.WaitGroup
}

// New creates an Engine and registers it as the scheduler's fire func.
func New(d Deps, cfg Config) *Engine {
	if cfg.SpamThreshold <= 0 {
		cfg.SpamThreshold = 2
	}
	if cfg.Limits.Bio <= 0 {
		cfg.Limits.Bio = 700
	}
	if cfg.Limits.Character <= 0 {
		cfg.Limits.Character = 400
	}
	if cfg.Limits.Narrator <= 0 {
		cfg.Limits.Narrator = 3000
	}
	if cfg.Limits.ImageBytes <= 0 {
		cfg.Limits.ImageBytes = 4 << 20
	}
	if cfg.Limits.VoiceBytes <= 0 {
		cfg.Limits.VoiceBytes = 14 << 20
	}
	if d.Directives == nil {
		d.Directives = directive.DefaultRegistry()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New(d.Store.Count)
	}

	e := &Engine{
		bus:        d.Bus,
		store:      d.Store,
		sched:      d.Scheduler,
		transport:  d.Transport,
		pacer:      d.Pacer,
		gen:        d.Generator,
		narrator:   d.Narrator,
		persona:    d.Persona,
		directives: d.Directives,
		frames:     d.Frames,
		metrics:    d.Metrics,
		cfg:        cfg,
		now:        time.Now,
	}
	d.Scheduler.SetFireFunc(e.fire)
	return e
}

// Run reads from the inbound bus and processes each event in a goroutine.
// Blocks until ctx is cancelled, then waits for in-flight handlers.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine: started")

	for {
		select {
		case ev := <-e.bus.InboundChan():
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				e.Handle(ctx, ev)
			}()
		case <-ctx.Done():
			slog.Info("engine: stopping")
			e.wg.Wait()
			return ctx.Err()
		}
	}
}

// Handle processes one event synchronously. Panics are contained.
func (e *Engine) Handle(ctx context.Context, ev bus.InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine: handler panic", "user", ev.UserID, "kind", ev.Kind, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	slog.Debug("engine: event", "user", ev.UserID, "kind", ev.Kind, "channel", ev.Channel, "content", ev.Preview())

	if ev.Kind == bus.KindSentinel {
		e.handleSentinel(ctx, ev)
		return
	}

	sess := e.store.GetOrCreate(ev.UserID)
	slot := sess.ActiveSlot
	st := sess.Slots[slot]

	if st.PendingInput != session.PendingNone {
		e.handlePending(ctx, ev, slot, st)
		return
	}
	if ev.Kind == bus.KindText {
		if name, arg, ok := parseCommand(ev.Text); ok {
			e.metrics.Turn(metrics.OutcomeCommand)
			e.runCommand(ctx, ev.UserID, name, arg)
			return
		}
		if sess.Menu != session.MenuMain && e.menuChoice(ctx, ev.UserID, sess.Menu, ev.Text) {
			return
		}
	}
	if !sess.Welcomed {
		e.notify(ctx, ev.UserID, e.persona.Welcome())
		return
	}
	if ev.Kind == bus.KindDocument {
		e.notify(ctx, ev.UserID, noticeUnexpectedDocument)
		return
	}

	// The user is here; whatever happens next, the idle timer is stale.
	e.sched.Cancel(session.Key{UserID: ev.UserID, Slot: slot})

	release, ok := e.store.TryAcquire(ev.UserID, slot)
	if !ok {
		e.rejectBusy(ctx, ev.UserID, slot)
		return
	}
	defer release()

	if ev.Kind == bus.KindText {
		e.turn(ctx, turnInput{userID: ev.UserID, slot: slot, text: ev.Text, replyTo: ev.MessageID})
		return
	}
	e.mediaTurn(ctx, ev, slot)
}

// handleSentinel runs an internal event on the slot it addresses. A busy
// slot means the user is active, so the event is dropped.
func (e *Engine) handleSentinel(ctx context.Context, ev bus.InboundEvent) {
	if !session.ValidSlot(ev.Slot) || !isSentinel(ev.Text) {
		slog.Warn("engine: malformed internal event", "user", ev.UserID, "slot", ev.Slot)
		return
	}
	release, ok := e.store.TryAcquire(ev.UserID, ev.Slot)
	if !ok {
		e.metrics.Turn(metrics.OutcomeSentinel)
		slog.Info("engine: slot busy, internal event dropped", "user", ev.UserID, "slot", ev.Slot)
		return
	}
	defer release()
	e.turn(ctx, turnInput{userID: ev.UserID, slot: ev.Slot, text: ev.Text, sentinel: true})
}

// holdSlot takes the slot's turn token for a command that rewrites the
// slot outside a turn. A busy slot gets the busy notice.
func (e *Engine) holdSlot(ctx context.Context, userID int64, slot int) (release func(), ok bool) {
	release, ok = e.store.TryAcquire(userID, slot)
	if !ok {
		e.metrics.Turn(metrics.OutcomeBusy)
		e.notify(ctx, userID, noticeBusy)
	}
	return release, ok
}

// rejectBusy answers a message that arrived while a turn is in flight.
// Repeated messages escalate to the spam notice.
func (e *Engine) rejectBusy(ctx context.Context, userID int64, slot int) {
	st, err := e.store.Update(userID, slot, func(s *session.SlotState) { s.SpamCounter++ })
	if err != nil {
		slog.Warn("engine: spam counter", "user", userID, "err", err)
		return
	}
	if st.SpamCounter > e.cfg.SpamThreshold {
		e.metrics.Turn(metrics.OutcomeSpam)
		e.notify(ctx, userID, noticeSpam)
		return
	}
	e.metrics.Turn(metrics.OutcomeBusy)
	e.notify(ctx, userID, noticeBusy)
}

// notify sends a plain service message. An unreachable user is torn down.
func (e *Engine) notify(ctx context.Context, userID int64, text string) {
	if _, err := e.transport.SendText(ctx, userID, text, schema.SendOptions{}); err != nil {
		if errors.Is(err, schema.ErrBlocked) {
			e.teardown(userID)
			return
		}
		slog.Warn("engine: notice not sent", "user", userID, "err", err)
	}
}

// teardown forgets a user the transport can no longer reach.
func (e *Engine) teardown(userID int64) {
	e.metrics.Turn(metrics.OutcomeBlocked)
	e.sched.CancelUser(userID)
	e.store.Teardown(userID)
	slog.Info("engine: user unreachable, state dropped", "user", userID)
}

// rearm restarts the idle timer of a slot according to its state.
func (e *Engine) rearm(userID int64, slot int) {
	sess := e.store.GetOrCreate(userID)
	st := sess.Slots[slot]
	e.sched.Rearm(session.Key{UserID: userID, Slot: slot}, reengage.Plan{
		State:    st.Reengagement,
		Banned:   st.Banned,
		Disabled: !e.cfg.Reengagement || !sess.ReengagementEnabled,
	})
}

// fire is the scheduler callback. It re-validates the slot and the
// recipient and then injects the silence input as a normal event.
func (e *Engine) fire(ctx context.Context, key session.Key) {
	if !e.store.Exists(key.UserID) {
		ok, err := e.store.HasDurableHistory(ctx, key.UserID, key.Slot)
		if err != nil || !ok {
			slog.Info("engine: idle timer for unknown slot discarded", "user", key.UserID, "slot", key.Slot, "err", err)
			return
		}
	}
	if err := e.transport.Reachable(ctx, key.UserID); err != nil {
		if errors.Is(err, schema.ErrBlocked) {
			e.teardown(key.UserID)
		}
		slog.Info("engine: idle timer discarded, recipient unreachable", "user", key.UserID, "err", err)
		return
	}
	st, err := e.store.Slot(key.UserID, key.Slot)
	if err != nil || st.Banned {
		return
	}
	if e.store.Busy(key.UserID, key.Slot) {
		// The running turn re-arms the slot when it replies.
		slog.Info("engine: idle timer discarded, slot busy", "user", key.UserID, "slot", key.Slot)
		return
	}
	if err := e.bus.PublishInbound(ctx, bus.NewSentinel(key.UserID, key.Slot, SilenceInput)); err != nil {
		slog.Warn("engine: silence event not published", "user", key.UserID, "slot", key.Slot, "err", err)
	}
}
