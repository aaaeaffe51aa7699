package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crystaldolphin/confidant/internal/bus"
	"github.com/crystaldolphin/confidant/internal/schema"
)

// MaxUTCOffsetMinutes bounds accepted offsets (UTC-14:00 to UTC+14:00).
const MaxUTCOffsetMinutes = 14 * 60

// SetTimezone records the user's offset in minutes east of UTC and lets
// the persona react to it.
func (e *Engine) SetTimezone(ctx context.Context, userID int64, offsetMinutes int) error {
	if offsetMinutes < -MaxUTCOffsetMinutes || offsetMinutes > MaxUTCOffsetMinutes {
		return fmt.Errorf("offset %d out of range: %w", offsetMinutes, schema.ErrValidation)
	}
	e.store.SetUTCOffset(userID, &offsetMinutes)
	slog.Info("engine: time zone set", "user", userID, "offset", offsetMinutes)
	e.notify(ctx, userID, noticeTimeSynced)
	e.nudge(ctx, userID, TimeSyncedInput)
	return nil
}

// nudge feeds an internal input to the active slot when the user already
// talks to it.
func (e *Engine) nudge(ctx context.Context, userID int64, input string) {
	sess := e.store.GetOrCreate(userID)
	if !sess.Welcomed || sess.Active().Interactions == 0 {
		return
	}
	if err := e.bus.PublishInbound(ctx, bus.NewSentinel(userID, sess.ActiveSlot, input)); err != nil {
		slog.Warn("engine: internal event not published", "user", userID, "err", err)
	}
}
