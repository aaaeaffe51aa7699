package engine

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/crystaldolphin/confidant/internal/bus"
	"github.com/crystaldolphin/confidant/internal/metrics"
	"github.com/crystaldolphin/confidant/internal/schema"
)

// mediaTurn turns an attachment into a turn input and runs it. The caller
// holds the slot's turn token.
func (e *Engine) mediaTurn(ctx context.Context, ev bus.InboundEvent, slot int) {
	switch ev.Kind {
	case bus.KindImage, bus.KindSticker:
		e.imageTurn(ctx, ev, slot)
	case bus.KindAnimation:
		e.animationTurn(ctx, ev, slot)
	case bus.KindVoice:
		e.voiceTurn(ctx, ev, slot)
	default:
		slog.Debug("engine: unsupported event", "user", ev.UserID, "kind", ev.Kind)
	}
}

func (e *Engine) imageTurn(ctx context.Context, ev bus.InboundEvent, slot int) {
	if ev.Kind == bus.KindSticker && ev.FileRef == "" {
		e.notify(ctx, ev.UserID, noticeNoPreview)
		return
	}
	if ev.FileSize > e.cfg.Limits.ImageBytes {
		e.notify(ctx, ev.UserID, noticeImageTooBig)
		return
	}

	data, err := e.transport.FetchFile(ctx, ev.FileRef)
	if err != nil {
		slog.Error("engine: media download failed", "user", ev.UserID, "err", err)
		e.metrics.Turn(metrics.OutcomeFailed)
		e.notify(ctx, ev.UserID, noticeMediaFailed)
		return
	}
	if int64(len(data)) > e.cfg.Limits.ImageBytes {
		e.notify(ctx, ev.UserID, noticeImageTooBig)
		return
	}

	prompt := ev.Caption
	switch {
	case ev.Kind == bus.KindSticker && ev.Animated:
		prompt = promptAnimatedSticker
	case ev.Kind == bus.KindSticker:
		prompt = promptSticker
	case prompt == "":
		prompt = promptPhoto
	}
	mime := ev.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	e.turn(ctx, mediaInput(ev.UserID, slot, prompt, mime, data))
}

func (e *Engine) animationTurn(ctx context.Context, ev bus.InboundEvent, slot int) {
	if e.frames == nil {
		e.notify(ctx, ev.UserID, noticeNoAnimations)
		return
	}
	data, err := e.transport.FetchFile(ctx, ev.FileRef)
	if err == nil {
		data, err = e.frames.FirstFrame(ctx, data)
	}
	if err != nil {
		slog.Error("engine: animation not decoded", "user", ev.UserID, "err", err)
		e.metrics.Turn(metrics.OutcomeFailed)
		e.notify(ctx, ev.UserID, noticeMediaFailed)
		return
	}
	prompt := ev.Caption
	if prompt == "" {
		prompt = promptAnimation
	}
	e.turn(ctx, mediaInput(ev.UserID, slot, prompt, "image/png", data))
}

// voiceTurn transcribes a voice note and answers it as text, quoting the
// voice message.
func (e *Engine) voiceTurn(ctx context.Context, ev bus.InboundEvent, slot int) {
	if ev.FileSize > e.cfg.Limits.VoiceBytes {
		e.notify(ctx, ev.UserID, noticeVoiceTooBig)
		return
	}
	e.notify(ctx, ev.UserID, noticeListening)

	text, err := e.transcribe(ctx, ev)
	if err != nil {
		slog.Error("engine: voice not transcribed", "user", ev.UserID, "err", err)
		e.metrics.Turn(metrics.OutcomeFailed)
		e.notify(ctx, ev.UserID, noticeVoiceFailed)
		return
	}
	if text == "" {
		e.notify(ctx, ev.UserID, noticeVoiceUnclear)
		return
	}
	slog.Info("engine: voice transcribed", "user", ev.UserID, "len", len(text))
	e.turn(ctx, turnInput{userID: ev.UserID, slot: slot, text: text, replyTo: ev.MessageID})
}

func (e *Engine) transcribe(ctx context.Context, ev bus.InboundEvent) (string, error) {
	data, err := e.transport.FetchFile(ctx, ev.FileRef)
	if err != nil {
		return "", err
	}
	mime := ev.MimeType
	if mime == "" {
		mime = "audio/ogg"
	}
	msg := schema.Message{Role: schema.RoleUser, Parts: []schema.Part{
		{Text: promptTranscribe},
		{InlineData: &schema.InlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}},
	}}
	model := e.store.GetOrCreate(ev.UserID).Model
	out, err := e.gen.Generate(ctx, schema.NewGenerateRequest(model, "", []schema.Message{msg}))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func mediaInput(userID int64, slot int, prompt, mime string, data []byte) turnInput {
	return turnInput{
		userID: userID,
		slot:   slot,
		text:   prompt,
		parts: []schema.Part{
			{Text: prompt},
			{InlineData: &schema.InlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}},
		},
	}
}
