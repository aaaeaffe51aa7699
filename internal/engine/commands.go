package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/crystaldolphin/confidant/internal/schema"
	"github.com/crystaldolphin/confidant/internal/session"
	"github.com/crystaldolphin/confidant/internal/shared/llmutils"
	"github.com/crystaldolphin/confidant/internal/transfer"
)

type commandFunc func(e *Engine, ctx context.Context, userID int64, arg string)

var commands = map[string]commandFunc{
	"start":       (*Engine).cmdStart,
	"help":        (*Engine).cmdHelp,
	"clear":       (*Engine).cmdClear,
	"slot":        (*Engine).cmdSlot,
	"slots":       (*Engine).cmdSlots,
	"bio":         askFor(session.PendingBio),
	"character":   askFor(session.PendingCharacter),
	"narrator":    askFor(session.PendingNarrator),
	"import":      askFor(session.PendingImport),
	"model":       (*Engine).cmdModel,
	"reminders":   (*Engine).cmdReminders,
	"debug":       (*Engine).cmdDebug,
	"export":      (*Engine).cmdExport,
	"diary":       (*Engine).cmdDiary,
	"stats":       (*Engine).cmdStats,
	"time":        (*Engine).cmdTime,
	"forget_time": (*Engine).cmdForgetTime,
	"cancel":      (*Engine).cmdCancel,
}

// parseCommand splits "/name@bot arg" into its lowercase name and argument.
func parseCommand(text string) (name, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

func (e *Engine) runCommand(ctx context.Context, userID int64, name, arg string) {
	fn, ok := commands[name]
	if !ok {
		e.notify(ctx, userID, noticeUnknownCommand)
		return
	}
	slog.Info("engine: command", "user", userID, "command", name)
	e.store.SetMenu(userID, session.MenuMain)
	fn(e, ctx, userID, arg)
}

// menuChoice treats a bare number as a pick from the listing the user last
// opened. Anything else leaves the menu and is handled as usual.
func (e *Engine) menuChoice(ctx context.Context, userID int64, menu, text string) bool {
	e.store.SetMenu(userID, session.MenuMain)
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return false
	}
	switch menu {
	case session.MenuSlots:
		if !session.ValidSlot(n - 1) {
			e.notify(ctx, userID, noticeSlotUsage)
			return true
		}
		e.switchSlot(ctx, userID, n-1)
	case session.MenuModels:
		if n < 1 || n > len(e.cfg.Models) {
			e.notify(ctx, userID, fmt.Sprintf(noticeModelUnknown, strings.Join(e.cfg.Models, ", ")))
			return true
		}
		e.cmdModel(ctx, userID, e.cfg.Models[n-1])
	default:
		return false
	}
	return true
}

func (e *Engine) cmdStart(ctx context.Context, userID int64, _ string) {
	if err := e.transport.Reachable(ctx, userID); err != nil {
		if errors.Is(err, schema.ErrBlocked) {
			e.teardown(userID)
		}
		return
	}
	e.store.MarkWelcomed(userID)
	e.notify(ctx, userID, e.persona.Welcome())
	e.notify(ctx, userID, noticeStarted)
}

func (e *Engine) cmdHelp(ctx context.Context, userID int64, _ string) {
	e.notify(ctx, userID, noticeHelp)
}

func (e *Engine) cmdClear(ctx context.Context, userID int64, _ string) {
	slot := e.store.GetOrCreate(userID).ActiveSlot
	release, ok := e.holdSlot(ctx, userID, slot)
	if !ok {
		return
	}
	defer release()
	if err := e.store.ResetSlot(ctx, userID, slot); err != nil {
		slog.Warn("engine: reset failed", "user", userID, "slot", slot, "err", err)
	}
	e.sched.Cancel(session.Key{UserID: userID, Slot: slot})
	e.notify(ctx, userID, fmt.Sprintf(noticeCleared, slot+1))
}

func (e *Engine) cmdSlot(ctx context.Context, userID int64, arg string) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || !session.ValidSlot(n-1) {
		e.notify(ctx, userID, noticeSlotUsage)
		return
	}
	e.switchSlot(ctx, userID, n-1)
}

// switchSlot activates target. The slot left gets an idle timer when it
// has been used; the slot entered loses its timer.
func (e *Engine) switchSlot(ctx context.Context, userID int64, target int) {
	sess := e.store.GetOrCreate(userID)
	if sess.Slots[target].Banned {
		e.notify(ctx, userID, noticeSlotBlocked)
		return
	}
	prev, err := e.store.SetActiveSlot(userID, target)
	if err != nil {
		e.notify(ctx, userID, noticeSlotUsage)
		return
	}

	if prev != target {
		e.sched.Cancel(session.Key{UserID: userID, Slot: prev})
		if sess.Slots[prev].Interactions > 0 {
			e.rearm(userID, prev)
		}
	}
	e.sched.Cancel(session.Key{UserID: userID, Slot: target})

	if _, err := e.store.History(ctx, userID, target); err != nil {
		slog.Warn("engine: history not hydrated", "user", userID, "slot", target, "err", err)
	}
	slog.Info("engine: slot switched", "user", userID, "from", prev, "to", target)
	e.notify(ctx, userID, fmt.Sprintf(noticeSwitched, target+1))
	e.notify(ctx, userID, statsText(target, e.store.GetOrCreate(userID).Slots[target]))
}

func (e *Engine) cmdSlots(ctx context.Context, userID int64, _ string) {
	sess := e.store.GetOrCreate(userID)
	lines := make([]string, 0, session.SlotCount)
	for i, st := range sess.Slots {
		var b strings.Builder
		if i == sess.ActiveSlot {
			b.WriteString("➡️ ")
		}
		history, _ := e.store.History(ctx, userID, i)
		switch {
		case st.Banned:
			fmt.Fprintf(&b, "Chat %d 🔒 Blocked", i+1)
		case len(history) == 0:
			fmt.Fprintf(&b, "Slot %d ⭐ (empty)", i+1)
		default:
			fmt.Fprintf(&b, "Chat %d 📁 ❤️ %d (%s) 💭 %s", i+1, st.RelationshipLevel, st.RelationshipStatus, st.Moodlet)
		}
		lines = append(lines, llmutils.Truncate(b.String(), 61))
	}
	e.store.SetMenu(userID, session.MenuSlots)
	e.notify(ctx, userID, strings.Join(lines, "\n")+"\n\n"+noticeSlotsPick)
}

func askFor(kind session.PendingInput) commandFunc {
	return func(e *Engine, ctx context.Context, userID int64, _ string) {
		slot := e.store.GetOrCreate(userID).ActiveSlot
		_, _ = e.store.Update(userID, slot, func(s *session.SlotState) { s.PendingInput = kind })
		switch kind {
		case session.PendingBio:
			e.notify(ctx, userID, fmt.Sprintf(noticeAskBio, e.cfg.Limits.Bio))
		case session.PendingCharacter:
			e.notify(ctx, userID, fmt.Sprintf(noticeAskCharacter, e.cfg.Limits.Character))
		case session.PendingNarrator:
			e.notify(ctx, userID, fmt.Sprintf(noticeAskNarrator, e.cfg.Limits.Narrator))
		case session.PendingImport:
			e.notify(ctx, userID, noticeAskImport)
		}
	}
}

func (e *Engine) cmdModel(ctx context.Context, userID int64, arg string) {
	sess := e.store.GetOrCreate(userID)
	if arg == "" {
		lines := make([]string, 0, len(e.cfg.Models))
		for i, m := range e.cfg.Models {
			mark := "  "
			if m == sess.Model {
				mark = "➡️"
			}
			lines = append(lines, fmt.Sprintf("%s %d. %s", mark, i+1, m))
		}
		e.store.SetMenu(userID, session.MenuModels)
		e.notify(ctx, userID, "Models:\n"+strings.Join(lines, "\n")+"\n\n"+noticeModelsPick)
		return
	}
	if !containsModel(e.cfg.Models, arg) {
		e.notify(ctx, userID, fmt.Sprintf(noticeModelUnknown, strings.Join(e.cfg.Models, ", ")))
		return
	}
	if sess.Model == arg {
		e.notify(ctx, userID, noticeModelActive)
		return
	}
	e.store.SetModel(userID, arg)
	slog.Info("engine: model changed", "user", userID, "model", arg)
	e.notify(ctx, userID, fmt.Sprintf(noticeModelChanged, arg))
}

func containsModel(models []string, m string) bool {
	for _, v := range models {
		if v == m {
			return true
		}
	}
	return false
}

func (e *Engine) cmdReminders(ctx context.Context, userID int64, arg string) {
	switch strings.ToLower(arg) {
	case "on":
		e.store.SetReengagement(userID, true)
		e.notify(ctx, userID, noticeRemindersOn)
	case "off":
		e.store.SetReengagement(userID, false)
		e.sched.CancelUser(userID)
		e.notify(ctx, userID, noticeRemindersOff)
	default:
		state := "off"
		if e.store.GetOrCreate(userID).ReengagementEnabled {
			state = "on"
		}
		e.notify(ctx, userID, fmt.Sprintf(noticeRemindersHelp, state))
	}
}

func (e *Engine) cmdDebug(ctx context.Context, userID int64, _ string) {
	on := !e.store.GetOrCreate(userID).Debug
	e.store.SetDebug(userID, on)
	if on {
		e.notify(ctx, userID, noticeDebugOn)
		return
	}
	e.notify(ctx, userID, noticeDebugOff)
}

func (e *Engine) cmdExport(ctx context.Context, userID int64, _ string) {
	slot := e.store.GetOrCreate(userID).ActiveSlot
	now := e.now()
	_, data, err := transfer.Export(ctx, e.store, userID, slot, now)
	if err == nil {
		err = e.transport.SendDocument(ctx, userID, transfer.FileName(slot, now), data)
	}
	if err != nil {
		if errors.Is(err, schema.ErrBlocked) {
			e.teardown(userID)
			return
		}
		slog.Error("engine: export failed", "user", userID, "slot", slot, "err", err)
		e.notify(ctx, userID, noticeExportFailed)
		return
	}
	slog.Info("engine: exported", "user", userID, "slot", slot, "bytes", len(data))
}

func (e *Engine) cmdDiary(ctx context.Context, userID int64, _ string) {
	slot := e.store.GetOrCreate(userID).ActiveSlot
	entries, err := e.store.Diary(ctx, userID, slot)
	if err != nil {
		slog.Warn("engine: diary unavailable", "user", userID, "err", err)
	}
	if len(entries) == 0 {
		e.notify(ctx, userID, noticeDiaryEmpty)
		return
	}
	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = fmt.Sprintf("%d. %s", i+1, entry)
	}
	e.notify(ctx, userID, fmt.Sprintf(noticeDiaryHeader, slot+1)+strings.Join(lines, "\n\n"))
}

func (e *Engine) cmdStats(ctx context.Context, userID int64, _ string) {
	sess := e.store.GetOrCreate(userID)
	e.notify(ctx, userID, statsText(sess.ActiveSlot, sess.Active()))
}

func (e *Engine) cmdTime(ctx context.Context, userID int64, _ string) {
	if e.cfg.WebAppURL == "" {
		slog.Error("engine: web app URL not configured, time sync unavailable")
		e.notify(ctx, userID, noticeTimeNoURL)
		return
	}
	link := strings.TrimRight(e.cfg.WebAppURL, "/") + "/tz-setup?" + url.Values{"chatId": {strconv.FormatInt(userID, 10)}}.Encode()
	e.notify(ctx, userID, fmt.Sprintf(noticeTimeLink, link))
}

func (e *Engine) cmdForgetTime(ctx context.Context, userID int64, _ string) {
	if e.store.GetOrCreate(userID).UTCOffsetMinutes == nil {
		e.notify(ctx, userID, noticeTimeUnset)
		return
	}
	e.store.SetUTCOffset(userID, nil)
	e.notify(ctx, userID, noticeTimeForgot)
	e.nudge(ctx, userID, TimeForgotInput)
}

func (e *Engine) cmdCancel(ctx context.Context, userID int64, _ string) {
	e.notify(ctx, userID, noticeNothingToCancel)
}
