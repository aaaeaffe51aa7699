package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/crystaldolphin/confidant/internal/bus"
	"github.com/crystaldolphin/confidant/internal/schema"
	"github.com/crystaldolphin/confidant/internal/session"
	"github.com/crystaldolphin/confidant/internal/transfer"
)

// settingFlow describes one free-text setting collected after a command.
type settingFlow struct {
	limit    func(Limits) int
	set      func(*session.SlotState, string)
	saved    string
	erased   string
	canceled string
}

var settingFlows = map[session.PendingInput]settingFlow{
	session.PendingBio: {
		limit:    func(l Limits) int { return l.Bio },
		set:      func(s *session.SlotState, v string) { s.Bio = v },
		saved:    noticeBioSaved,
		erased:   noticeBioErased,
		canceled: noticeBioCanceled,
	},
	session.PendingCharacter: {
		limit:    func(l Limits) int { return l.Character },
		set:      func(s *session.SlotState, v string) { s.Character = v },
		saved:    noticeCharSaved,
		erased:   noticeCharErased,
		canceled: noticeCharCanceled,
	},
	session.PendingNarrator: {
		limit: func(l Limits) int { return l.Narrator },
		set: func(s *session.SlotState, v string) {
			s.NarratorDirective = v
			s.NarratorTurns = 0
		},
		saved:    noticeNarrSaved,
		erased:   noticeNarrErased,
		canceled: noticeNarrCanceled,
	},
}

func isCancel(ev bus.InboundEvent) bool {
	return ev.Kind == bus.KindText && strings.EqualFold(strings.TrimSpace(ev.Text), "/cancel")
}

// handlePending consumes an event while the active slot waits for input.
func (e *Engine) handlePending(ctx context.Context, ev bus.InboundEvent, slot int, st session.SlotState) {
	if st.PendingInput == session.PendingImport {
		e.handleImport(ctx, ev, slot)
		return
	}
	flow, ok := settingFlows[st.PendingInput]
	if !ok {
		_, _ = e.store.Update(ev.UserID, slot, func(s *session.SlotState) { s.PendingInput = session.PendingNone })
		return
	}
	if ev.Kind != bus.KindText {
		e.notify(ctx, ev.UserID, noticeTextExpected)
		return
	}

	if isCancel(ev) {
		e.clearPending(ev.UserID, slot)
		e.notify(ctx, ev.UserID, flow.canceled)
		return
	}

	text := ev.Text
	notice := flow.saved
	switch {
	case strings.EqualFold(strings.TrimSpace(text), "erase"):
		text = ""
		notice = flow.erased
	case utf8.RuneCountInString(text) > flow.limit(e.cfg.Limits):
		e.notify(ctx, ev.UserID, fmt.Sprintf(noticeTooLong, flow.limit(e.cfg.Limits)))
		return
	}

	release, ok := e.holdSlot(ctx, ev.UserID, slot)
	if !ok {
		return
	}
	defer release()

	_, _ = e.store.Update(ev.UserID, slot, func(s *session.SlotState) {
		s.PendingInput = session.PendingNone
		flow.set(s, text)
	})
	if err := e.store.ResetSlot(ctx, ev.UserID, slot); err != nil {
		slog.Warn("engine: reset failed", "user", ev.UserID, "slot", slot, "err", err)
	}
	e.sched.Cancel(session.Key{UserID: ev.UserID, Slot: slot})
	slog.Info("engine: slot setting changed", "user", ev.UserID, "slot", slot, "setting", st.PendingInput, "len", len(text))
	e.notify(ctx, ev.UserID, notice)
}

func (e *Engine) clearPending(userID int64, slot int) {
	_, _ = e.store.Update(userID, slot, func(s *session.SlotState) { s.PendingInput = session.PendingNone })
}

// handleImport waits for a JSON document and restores the slot from it.
func (e *Engine) handleImport(ctx context.Context, ev bus.InboundEvent, slot int) {
	switch {
	case isCancel(ev):
		e.clearPending(ev.UserID, slot)
		e.notify(ctx, ev.UserID, noticeImportCancel)
		return
	case ev.Kind != bus.KindDocument:
		e.notify(ctx, ev.UserID, noticeImportFile)
		return
	case ev.MimeType != "application/json":
		e.notify(ctx, ev.UserID, noticeImportNotJSON)
		return
	}

	release, ok := e.holdSlot(ctx, ev.UserID, slot)
	if !ok {
		return
	}
	defer release()

	e.notify(ctx, ev.UserID, noticeImportStarted)
	e.clearPending(ev.UserID, slot)

	data, err := e.transport.FetchFile(ctx, ev.FileRef)
	if err != nil {
		slog.Error("engine: import download failed", "user", ev.UserID, "err", err)
		e.notify(ctx, ev.UserID, noticeImportFailed)
		return
	}
	st, err := transfer.Import(ctx, e.store, e.sched, ev.UserID, slot, data)
	if err != nil {
		slog.Warn("engine: import rejected", "user", ev.UserID, "slot", slot, "err", err)
		if errors.Is(err, schema.ErrValidation) {
			e.notify(ctx, ev.UserID, noticeImportBadForm)
		} else {
			e.notify(ctx, ev.UserID, noticeImportFailed)
		}
		return
	}
	slog.Info("engine: imported", "user", ev.UserID, "slot", slot, "context", st.ContextSize)
	e.notify(ctx, ev.UserID, noticeImportDone)
	e.notify(ctx, ev.UserID, statsText(slot, st))
}
