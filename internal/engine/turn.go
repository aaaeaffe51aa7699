package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/crystaldolphin/confidant/internal/delivery"
	"github.com/crystaldolphin/confidant/internal/directive"
	"github.com/crystaldolphin/confidant/internal/metrics"
	"github.com/crystaldolphin/confidant/internal/persona"
	"github.com/crystaldolphin/confidant/internal/schema"
	"github.com/crystaldolphin/confidant/internal/session"
	"github.com/crystaldolphin/confidant/internal/shared/llmutils"
)

// turnInput is one user turn. parts, when set, replace the single text
// part of the stored message; parts[0] must be the text prompt.
type turnInput struct {
	userID   int64
	slot     int
	text     string
	parts    []schema.Part
	replyTo  int
	sentinel bool
}

func (in turnInput) message() schema.Message {
	if len(in.parts) > 0 {
		return schema.Message{Role: schema.RoleUser, Parts: in.parts}.Clone()
	}
	return schema.NewTextMessage(schema.RoleUser, in.text)
}

// turn runs the generation pipeline for one input. The caller holds the
// slot's turn token.
func (e *Engine) turn(ctx context.Context, in turnInput) {
	log := slog.With("turn", uuid.NewString(), "user", in.userID, "slot", in.slot)

	sess := e.store.GetOrCreate(in.userID)
	st := sess.Slots[in.slot]
	if st.Banned {
		e.metrics.Turn(metrics.OutcomeBanned)
		e.notify(ctx, in.userID, noticeBanned)
		return
	}

	history, err := e.store.History(ctx, in.userID, in.slot)
	if err != nil {
		log.Error("engine: history unavailable", "err", err)
		e.metrics.Turn(metrics.OutcomeFailed)
		e.notify(ctx, in.userID, noticeApology)
		return
	}

	if !in.sentinel {
		st, _ = e.store.Update(in.userID, in.slot, func(s *session.SlotState) {
			s.SpamCounter++
			if s.NarratorDirective != "" {
				s.NarratorTurns++
			}
		})
		if st.SpamCounter > e.cfg.SpamThreshold {
			e.metrics.Turn(metrics.OutcomeSpam)
			e.notify(ctx, in.userID, noticeSpam)
			return
		}
	}

	input := in.text
	if e.narrator != nil {
		input = e.narrator.Augment(ctx, sess.Model, st, history, input)
	}
	if !in.sentinel && sess.UTCOffsetMinutes != nil {
		input = persona.TimeTag(e.now(), *sess.UTCOffsetMinutes) + "\n\n" + input
	}

	stored := in.message()
	if err := e.store.AppendHistory(ctx, in.userID, in.slot, stored); err != nil {
		log.Error("engine: append failed", "err", err)
		e.metrics.Turn(metrics.OutcomeFailed)
		e.notify(ctx, in.userID, noticeApology)
		return
	}
	st, _ = e.store.Update(in.userID, in.slot, func(s *session.SlotState) {
		s.Interactions++
		s.LastActive = e.now()
	})

	outgoing := stored.Clone()
	outgoing.Parts[0].Text = input
	past := schema.Messages{Messages: history}
	if st.Character != "" && past.CountRole(schema.RoleUser) == 0 {
		outgoing.Parts[0].Text = persona.CharacterEntry(st.Character, outgoing.Parts[0].Text)
		log.Info("engine: character injected")
	}
	turns := append(history, outgoing)

	stopTyping := e.pacer.KeepTyping(ctx, in.userID)
	reply, err := e.generate(ctx, sess.Model, e.persona.Compose(st), turns)
	stopTyping()
	if err != nil {
		log.Error("engine: generation failed", "err", err)
		e.store.PopHistory(in.userID, in.slot)
		_, _ = e.store.Update(in.userID, in.slot, func(s *session.SlotState) { s.SpamCounter = 0 })
		e.metrics.Turn(metrics.OutcomeFailed)
		e.notify(ctx, in.userID, noticeApology)
		return
	}

	var outcome directive.Outcome
	st, _ = e.store.Update(in.userID, in.slot, func(s *session.SlotState) {
		outcome = e.directives.ApplyText(s, reply)
	})
	if len(outcome.Diary) > 0 {
		if err := e.store.AppendDiary(ctx, in.userID, in.slot, outcome.Diary...); err != nil {
			log.Warn("engine: diary not saved", "err", err)
		}
	}
	if len(outcome.Applied) > 0 {
		log.Info("engine: directives applied", "commands", outcome.Applied, "ignored", outcome.Ignored)
	}

	if err := e.store.AppendHistory(ctx, in.userID, in.slot, schema.NewTextMessage(schema.RoleModel, reply)); err != nil {
		log.Error("engine: append reply failed", "err", err)
	}
	size, err := e.store.SaveHistory(ctx, in.userID, in.slot)
	if err != nil {
		log.Error("engine: history not persisted", "err", err)
	}
	_, _ = e.store.Update(in.userID, in.slot, func(s *session.SlotState) { s.ContextSize = size })

	ids, err := e.pacer.Deliver(ctx, in.userID, reply, delivery.Options{Debug: sess.Debug, ReplyTo: in.replyTo})
	if errors.Is(err, schema.ErrBlocked) {
		e.teardown(in.userID)
		return
	}
	if err != nil {
		log.Warn("engine: delivery interrupted", "sent", len(ids), "err", err)
	}

	st, _ = e.store.Update(in.userID, in.slot, func(s *session.SlotState) { s.SpamCounter = 0 })
	if e.cfg.ShowStats {
		e.notify(ctx, in.userID, statsText(in.slot, st))
	}
	e.rearm(in.userID, in.slot)

	e.metrics.Turn(metrics.OutcomeReplied)
	log.Info("engine: replied", "chunks", len(ids), "level", st.RelationshipLevel, "context", size)
}

// generate calls the model and normalises an empty answer into
// schema.ErrEmptyResponse.
func (e *Engine) generate(ctx context.Context, model, system string, turns []schema.Message) (string, error) {
	start := e.now()
	out, err := e.gen.Generate(ctx, schema.NewGenerateRequest(model, system, turns))
	e.metrics.Generation(e.now().Sub(start))
	if err != nil {
		return "", err
	}
	out = llmutils.StripThink(out)
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("engine: %w", schema.ErrEmptyResponse)
	}
	return out, nil
}

func statsText(slot int, st session.SlotState) string {
	return fmt.Sprintf("Stats (chat %d):\n  Relationship: %d (%s)\n  Mood: %s",
		slot+1, st.RelationshipLevel, st.RelationshipStatus, st.Moodlet)
}
