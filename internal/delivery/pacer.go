// Package delivery sends generated replies the way a person types them:
// split into chunks, each preceded by a typing pause proportional to its
// length.
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/crystaldolphin/confidant/internal/directive"
	"github.com/crystaldolphin/confidant/internal/schema"
)

// DefaultFailureNotice is sent when part of a reply could not be delivered.
const DefaultFailureNotice = "🚫 Part of the reply could not be delivered."

// Chunk results reported to Config.Observe.
const (
	ResultSent       = "sent"
	ResultPlainRetry = "plain_retry"
	ResultFailed     = "failed"
	ResultAborted    = "aborted"
)

// Config tunes a Pacer.
type Config struct {
	PerChar       time.Duration
	Heartbeat     time.Duration
	FailureNotice string
	Observe       func(result string)
}

// Options are per-delivery settings.
type Options struct {
	// Debug keeps tags visible and marks chunk boundaries.
	Debug bool
	// ReplyTo quotes a message on the first chunk; zero means none.
	ReplyTo int
}

// Pacer delivers replies over a transport.
type Pacer struct {
	transport schema.Transport
	cfg       Config
	pause     func(ctx context.Context, chatID int64, d time.Duration) error
}

// NewPacer creates a Pacer.
func NewPacer(t schema.Transport, cfg Config) *Pacer {
	if cfg.PerChar <= 0 {
		cfg.PerChar = 62 * time.Millisecond
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 4 * time.Second
	}
	if cfg.FailureNotice == "" {
		cfg.FailureNotice = DefaultFailureNotice
	}
	p := &Pacer{transport: t, cfg: cfg}
	p.pause = p.typingPause
	return p
}

// Deliver sends raw to chatID and returns the ids of delivered messages in
// order. It returns an error wrapping schema.ErrBlocked when the recipient
// became unreachable; the remaining chunks are dropped.
func (p *Pacer) Deliver(ctx context.Context, chatID int64, raw string, opts Options) ([]int, error) {
	var (
		ids    []int
		failed bool
	)
	for i, part := range directive.Split(raw) {
		text := strings.TrimSpace(part)
		if !opts.Debug {
			text = directive.Strip(part)
		}
		if text == "" {
			continue
		}

		if err := p.pause(ctx, chatID, time.Duration(directive.StrippedLen(part))*p.cfg.PerChar); err != nil {
			return ids, err
		}

		// Checked after the pause: the user may have left while "typing".
		if err := p.transport.Reachable(ctx, chatID); err != nil {
			if errors.Is(err, schema.ErrBlocked) {
				p.observe(ResultAborted)
				slog.Info("delivery: recipient unreachable, aborting", "chat", chatID, "sent", len(ids))
				return ids, err
			}
			slog.Warn("delivery: reachability check failed", "chat", chatID, "err", err)
		}

		if opts.Debug && i > 0 {
			if _, err := p.send(ctx, chatID, directive.DebugSeparator, 0); errors.Is(err, schema.ErrBlocked) {
				return ids, err
			}
		}

		replyTo := 0
		if len(ids) == 0 && !strings.HasPrefix(text, "```") {
			replyTo = opts.ReplyTo
		}
		id, err := p.send(ctx, chatID, text, replyTo)
		switch {
		case errors.Is(err, schema.ErrBlocked):
			p.observe(ResultAborted)
			return ids, err
		case err != nil:
			failed = true
			p.observe(ResultFailed)
			slog.Warn("delivery: chunk failed", "chat", chatID, "chunk", i, "err", err)
			continue
		}
		p.observe(ResultSent)
		ids = append(ids, id)
	}

	if failed {
		if _, err := p.transport.SendText(ctx, chatID, p.cfg.FailureNotice, schema.SendOptions{}); err != nil {
			slog.Warn("delivery: failure notice not sent", "chat", chatID, "err", err)
		}
	}
	return ids, nil
}

// send tries rich text first and falls back to plain text once when the
// transport rejects the formatting.
func (p *Pacer) send(ctx context.Context, chatID int64, text string, replyTo int) (int, error) {
	id, err := p.transport.SendText(ctx, chatID, text, schema.SendOptions{Markdown: true, ReplyTo: replyTo})
	if err == nil || !errors.Is(err, schema.ErrFormatting) {
		return id, err
	}
	p.observe(ResultPlainRetry)
	slog.Debug("delivery: formatting rejected, resending plain", "chat", chatID)
	return p.transport.SendText(ctx, chatID, text, schema.SendOptions{ReplyTo: replyTo})
}

// typingPause waits d while signalling presence every heartbeat.
func (p *Pacer) typingPause(ctx context.Context, chatID int64, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	p.presence(ctx, chatID)

	timer := time.NewTimer(d)
	defer timer.Stop()
	tick := time.NewTicker(p.cfg.Heartbeat)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-tick.C:
			p.presence(ctx, chatID)
		}
	}
}

func (p *Pacer) presence(ctx context.Context, chatID int64) {
	if err := p.transport.SendPresence(ctx, chatID); err != nil {
		slog.Debug("delivery: presence failed", "chat", chatID, "err", err)
	}
}

// KeepTyping signals presence every heartbeat until the returned stop
// func is called. Used while a reply is being generated.
func (p *Pacer) KeepTyping(ctx context.Context, chatID int64) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		tick := time.NewTicker(p.cfg.Heartbeat)
		defer tick.Stop()
		for {
			p.presence(ctx, chatID)
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (p *Pacer) observe(result string) {
	if p.cfg.Observe != nil {
		p.cfg.Observe(result)
	}
}
