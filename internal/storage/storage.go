// Package storage persists slot history and diaries.
//
// Every backend keeps one history record and one diary record per
// (user, slot). Writes are last-write-wins; callers serialise writers.
package storage

import (
	"context"
	"fmt"

	"github.com/crystaldolphin/confidant/internal/schema"
)

// Backend is the durable layer behind the session store.
type Backend interface {
	// LoadHistory returns the stored history and whether a record exists.
	LoadHistory(ctx context.Context, userID int64, slot int) ([]schema.Message, bool, error)
	SaveHistory(ctx context.Context, userID int64, slot int, history []schema.Message) error
	// LoadDiary returns the stored diary, empty when none exists.
	LoadDiary(ctx context.Context, userID int64, slot int) ([]string, error)
	SaveDiary(ctx context.Context, userID int64, slot int, entries []string) error
	// DeleteSlot removes both records of a slot.
	DeleteSlot(ctx context.Context, userID int64, slot int) error
	Close() error
}

// slotKey renders the "<user>_slot_<n>" stem shared by all backends.
func slotKey(userID int64, slot int) string {
	return fmt.Sprintf("%d_slot_%d", userID, slot)
}
