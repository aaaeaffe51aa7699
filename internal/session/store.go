package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/crystaldolphin/confidant/internal/schema"
	"github.com/crystaldolphin/confidant/internal/storage"
)

// Options tunes a Store.
type Options struct {
	// History longer than TrimAbove is cut to the newest TrimTo entries on save.
	TrimAbove int
	TrimTo    int
	// DefaultModel is the model assigned to new users.
	DefaultModel string
}

// Store is the in-memory session cache with a write-through durable layer.
// All slot mutation goes through Update so invariants are enforced in one
// place.
type Store struct {
	backend storage.Backend
	opts    Options
	users   sync.Map // int64 → *userEntry
}

type userEntry struct {
	mu   sync.Mutex
	sess UserSession

	history  [SlotCount]schema.Messages
	hydrated [SlotCount]bool
	diary    [SlotCount][]string
	diaryOK  [SlotCount]bool

	busy [SlotCount]atomic.Bool
}

// NewStore creates a Store over backend.
func NewStore(backend storage.Backend, opts Options) *Store {
	if opts.TrimAbove <= 0 {
		opts.TrimAbove = 100
	}
	if opts.TrimTo <= 0 || opts.TrimTo > opts.TrimAbove {
		opts.TrimTo = opts.TrimAbove * 4 / 5
	}
	return &Store{backend: backend, opts: opts}
}

func (s *Store) entry(userID int64) *userEntry {
	if v, ok := s.users.Load(userID); ok {
		return v.(*userEntry)
	}
	e := &userEntry{sess: NewUserSession(s.opts.DefaultModel)}
	for i := range e.history {
		e.history[i] = schema.NewMessages()
	}
	actual, loaded := s.users.LoadOrStore(userID, e)
	if !loaded {
		slog.Debug("session: created", "user", userID)
	}
	return actual.(*userEntry)
}

func checkSlot(index int) error {
	if !ValidSlot(index) {
		return fmt.Errorf("%w: slot %d out of range", schema.ErrValidation, index)
	}
	return nil
}

// GetOrCreate returns a snapshot of the user's session, creating it with
// eight default slots on first use.
func (s *Store) GetOrCreate(userID int64) UserSession {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

// Exists reports whether the user has in-memory state.
func (s *Store) Exists(userID int64) bool {
	_, ok := s.users.Load(userID)
	return ok
}

// Count returns the number of users with in-memory state.
func (s *Store) Count() int {
	n := 0
	s.users.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Slot returns a snapshot of one slot.
func (s *Store) Slot(userID int64, index int) (SlotState, error) {
	if err := checkSlot(index); err != nil {
		return SlotState{}, err
	}
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Slots[index], nil
}

// SetActiveSlot makes index the active slot and returns the previous one.
func (s *Store) SetActiveSlot(userID int64, index int) (int, error) {
	if err := checkSlot(index); err != nil {
		return 0, err
	}
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.sess.ActiveSlot
	e.sess.ActiveSlot = index
	return prev, nil
}

// Update runs fn on the slot under the user lock and returns the result.
// The relationship level is clamped after fn whatever fn wrote.
func (s *Store) Update(userID int64, index int, fn func(*SlotState)) (SlotState, error) {
	if err := checkSlot(index); err != nil {
		return SlotState{}, err
	}
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	st := &e.sess.Slots[index]
	fn(st)
	st.Normalize()
	return *st, nil
}

// UpdateUser runs fn on the user-level flags. Slot states are restored
// afterwards so they can only change through Update.
func (s *Store) UpdateUser(userID int64, fn func(*UserSession)) UserSession {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	slots := e.sess.Slots
	active := e.sess.ActiveSlot
	fn(&e.sess)
	e.sess.Slots = slots
	if !ValidSlot(e.sess.ActiveSlot) {
		e.sess.ActiveSlot = active
	}
	return e.sess
}

func (s *Store) SetDebug(userID int64, on bool) {
	s.UpdateUser(userID, func(u *UserSession) { u.Debug = on })
}

func (s *Store) SetReengagement(userID int64, on bool) {
	s.UpdateUser(userID, func(u *UserSession) { u.ReengagementEnabled = on })
}

func (s *Store) SetModel(userID int64, model string) {
	s.UpdateUser(userID, func(u *UserSession) { u.Model = model })
}

// SetUTCOffset records the user's offset from UTC in minutes; nil forgets it.
func (s *Store) SetUTCOffset(userID int64, minutes *int) {
	s.UpdateUser(userID, func(u *UserSession) {
		if minutes == nil {
			u.UTCOffsetMinutes = nil
			return
		}
		v := *minutes
		u.UTCOffsetMinutes = &v
	})
}

func (s *Store) SetMenu(userID int64, menu string) {
	s.UpdateUser(userID, func(u *UserSession) { u.Menu = menu })
}

func (s *Store) MarkWelcomed(userID int64) {
	s.UpdateUser(userID, func(u *UserSession) { u.Welcomed = true })
}

// ResetSlot restores slot defaults, keeping the biography, the character
// and the narrator directive, and removes history and diary everywhere.
func (s *Store) ResetSlot(ctx context.Context, userID int64, index int) error {
	if err := checkSlot(index); err != nil {
		return err
	}
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.sess.Slots[index]
	st := DefaultSlotState()
	st.Bio = old.Bio
	st.Character = old.Character
	st.NarratorDirective = old.NarratorDirective
	e.sess.Slots[index] = st

	e.history[index] = schema.NewMessages()
	e.hydrated[index] = true
	e.diary[index] = nil
	e.diaryOK[index] = true

	if err := s.backend.DeleteSlot(ctx, userID, index); err != nil {
		return fmt.Errorf("reset slot %d: %w", index, err)
	}
	slog.Info("session: slot reset", "user", userID, "slot", index)
	return nil
}

// Teardown drops all in-memory state of a user. Durable records stay.
func (s *Store) Teardown(userID int64) {
	if _, ok := s.users.LoadAndDelete(userID); ok {
		slog.Info("session: torn down", "user", userID)
	}
}

// hydrate loads durable history into an empty in-memory copy once.
// Caller holds e.mu.
func (s *Store) hydrate(ctx context.Context, e *userEntry, userID int64, index int) error {
	if e.hydrated[index] {
		return nil
	}
	if e.history[index].Len() == 0 {
		msgs, found, err := s.backend.LoadHistory(ctx, userID, index)
		if err != nil {
			return err
		}
		if found {
			e.history[index] = schema.NewMessages(msgs...)
			slog.Debug("session: history hydrated", "user", userID, "slot", index, "entries", len(msgs))
		}
	}
	e.hydrated[index] = true
	return nil
}

// History returns a copy of the slot history, hydrating it first.
func (s *Store) History(ctx context.Context, userID int64, index int) ([]schema.Message, error) {
	if err := checkSlot(index); err != nil {
		return nil, err
	}
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := s.hydrate(ctx, e, userID, index); err != nil {
		return nil, err
	}
	h := e.history[index].Clone()
	return h.Messages, nil
}

// AppendHistory adds msg to the in-memory history. It is persisted by the
// next SaveHistory.
func (s *Store) AppendHistory(ctx context.Context, userID int64, index int, msg schema.Message) error {
	if err := checkSlot(index); err != nil {
		return err
	}
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := s.hydrate(ctx, e, userID, index); err != nil {
		return err
	}
	e.history[index].Add(msg.Clone())
	return nil
}

// PopHistory removes the newest entry, used to roll back a failed turn.
func (s *Store) PopHistory(userID int64, index int) (schema.Message, bool) {
	if !ValidSlot(index) {
		return schema.Message{}, false
	}
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history[index].Pop()
}

// SaveHistory trims the history when it is over the limit and writes it
// through. It returns the length that was written.
func (s *Store) SaveHistory(ctx context.Context, userID int64, index int) (int, error) {
	if err := checkSlot(index); err != nil {
		return 0, err
	}
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.history[index].Len()
	if e.history[index].Trim(s.opts.TrimAbove, s.opts.TrimTo) {
		slog.Info("session: history trimmed", "user", userID, "slot", index, "from", n, "to", e.history[index].Len())
	}
	snapshot := e.history[index].Clone()
	if err := s.backend.SaveHistory(ctx, userID, index, snapshot.Messages); err != nil {
		return snapshot.Len(), fmt.Errorf("save history: %w", err)
	}
	return snapshot.Len(), nil
}

// ReplaceHistory swaps the whole history and writes it through.
func (s *Store) ReplaceHistory(ctx context.Context, userID int64, index int, msgs []schema.Message) error {
	if err := checkSlot(index); err != nil {
		return err
	}
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	h := schema.NewMessages(msgs...)
	e.history[index] = h.Clone()
	e.hydrated[index] = true
	if err := s.backend.SaveHistory(ctx, userID, index, msgs); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// HasDurableHistory reports whether the backend holds a history record.
func (s *Store) HasDurableHistory(ctx context.Context, userID int64, index int) (bool, error) {
	if err := checkSlot(index); err != nil {
		return false, err
	}
	_, found, err := s.backend.LoadHistory(ctx, userID, index)
	return found, err
}

func (s *Store) loadDiary(ctx context.Context, e *userEntry, userID int64, index int) error {
	if e.diaryOK[index] {
		return nil
	}
	notes, err := s.backend.LoadDiary(ctx, userID, index)
	if err != nil {
		return err
	}
	e.diary[index] = notes
	e.diaryOK[index] = true
	return nil
}

// Diary returns a copy of the slot diary.
func (s *Store) Diary(ctx context.Context, userID int64, index int) ([]string, error) {
	if err := checkSlot(index); err != nil {
		return nil, err
	}
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := s.loadDiary(ctx, e, userID, index); err != nil {
		return nil, err
	}
	return append([]string(nil), e.diary[index]...), nil
}

// AppendDiary appends notes in order and writes the diary through.
func (s *Store) AppendDiary(ctx context.Context, userID int64, index int, notes ...string) error {
	if err := checkSlot(index); err != nil {
		return err
	}
	if len(notes) == 0 {
		return nil
	}
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := s.loadDiary(ctx, e, userID, index); err != nil {
		return err
	}
	e.diary[index] = append(e.diary[index], notes...)
	if err := s.backend.SaveDiary(ctx, userID, index, e.diary[index]); err != nil {
		return fmt.Errorf("save diary: %w", err)
	}
	return nil
}

// TryAcquire takes the slot's turn token. ok is false when a turn is
// already in flight. release is idempotent.
func (s *Store) TryAcquire(userID int64, index int) (release func(), ok bool) {
	if !ValidSlot(index) {
		return func() {}, false
	}
	e := s.entry(userID)
	flag := &e.busy[index]
	if !flag.CompareAndSwap(false, true) {
		return func() {}, false
	}
	var once sync.Once
	return func() { once.Do(func() { flag.Store(false) }) }, true
}

// Busy reports whether a turn holds the slot's token.
func (s *Store) Busy(userID int64, index int) bool {
	if !ValidSlot(index) {
		return false
	}
	v, ok := s.users.Load(userID)
	if !ok {
		return false
	}
	return v.(*userEntry).busy[index].Load()
}
