// Package reengage arms one idle timer per (user, slot). When a timer
// fires the owner gets a callback and decides whether to nudge the user.
//
// Pending deadlines survive restarts through a JSON ledger:
//
//	{ "version": 1, "deadlines": [ { "userId": 1, "slot": 0, "dueAtMs": … } ] }
package reengage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/crystaldolphin/confidant/internal/session"
)

// Windows are the inclusive delay ranges per reengagement state.
type Windows struct {
	ShortMin, ShortMax time.Duration
	LongMin, LongMax   time.Duration
}

// DefaultWindows is 19-24h normally and 48-96h after a farewell.
var DefaultWindows = Windows{
	ShortMin: 19 * time.Hour,
	ShortMax: 24 * time.Hour,
	LongMin:  48 * time.Hour,
	LongMax:  96 * time.Hour,
}

// Plan is what Rearm needs to know about the slot.
type Plan struct {
	State    session.ReengageState
	Banned   bool
	Disabled bool
}

// FireFunc is called once per expired deadline.
type FireFunc func(ctx context.Context, key session.Key)

// Event names passed to Options.Observe.
const (
	EventArmed    = "armed"
	EventCanceled = "canceled"
	EventFired    = "fired"
	EventStale    = "stale"
	EventPanic    = "panic"
)

// Options tunes a Scheduler.
type Options struct {
	Windows Windows
	// LedgerPath is where deadlines are persisted; empty disables it.
	LedgerPath string
	// Grace is the delay applied to deadlines that expired while down.
	Grace time.Duration
	// Observe, when set, is told about every scheduling event.
	Observe func(event string)
}

type pending struct {
	timer *time.Timer
	gen   uint64
	due   time.Time
}

// Scheduler holds at most one pending timer per key.
type Scheduler struct {
	opts Options
	fire FireFunc

	mu      sync.Mutex
	ctx     context.Context
	timers   map[session.Key]*pending
	gen      uint64
	stopped  bool
	restored bool

	inflight sync.WaitGroup
}

// New creates a Scheduler. fire may be nil until SetFireFunc is called.
func New(opts Options, fire FireFunc) *Scheduler {
	if opts.Windows == (Windows{}) {
		opts.Windows = DefaultWindows
	}
	if opts.Grace <= 0 {
		opts.Grace = time.Minute
	}
	return &Scheduler{
		opts:   opts,
		fire:   fire,
		ctx:    context.Background(),
		timers: make(map[session.Key]*pending),
	}
}

// SetFireFunc registers the callback. Must be set before Start.
func (s *Scheduler) SetFireFunc(fn FireFunc) {
	s.mu.Lock()
	s.fire = fn
	s.mu.Unlock()
}

// Restore re-arms the deadlines saved in the ledger and returns how many
// were loaded. Only the first call reads the file; timers armed before it
// take precedence over saved ones for the same key. Rearm, Cancel and
// Start restore implicitly, so the ledger is never rewritten unread.
func (s *Scheduler) Restore() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked()
}

func (s *Scheduler) restoreLocked() int {
	if s.restored || s.stopped {
		return 0
	}
	s.restored = true
	saved, err := s.loadLocked()
	if err != nil {
		slog.Warn("reengage: ledger load failed, starting empty", "err", err)
	}
	now := time.Now()
	for _, d := range saved {
		key := session.Key{UserID: d.UserID, Slot: d.Slot}
		if _, ok := s.timers[key]; ok {
			continue
		}
		due := time.UnixMilli(d.DueAtMs)
		delay := due.Sub(now)
		if delay <= 0 {
			delay = s.opts.Grace
			due = now.Add(delay)
		}
		s.armLocked(key, delay, due)
	}
	s.saveLocked()
	if len(saved) > 0 {
		slog.Info("reengage: ledger restored", "deadlines", len(saved))
	}
	return len(saved)
}

// Start restores the ledger if that has not happened yet and blocks until
// ctx is cancelled, then stops every timer and waits for in-flight
// callbacks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.restoreLocked()
	n := len(s.timers)
	s.mu.Unlock()

	slog.Info("reengage: started", "pending", n)

	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// Stop cancels every timer without touching the ledger and waits for
// running callbacks. Later Rearm calls are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key, p := range s.timers {
		p.timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
	s.inflight.Wait()
}

// Delay samples a delay for state.
func (s *Scheduler) Delay(state session.ReengageState) time.Duration {
	lo, hi := s.opts.Windows.ShortMin, s.opts.Windows.ShortMax
	if state == session.ReengageFarewell {
		lo, hi = s.opts.Windows.LongMin, s.opts.Windows.LongMax
	}
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}

// Rearm cancels any timer for key and, unless the plan forbids it, arms a
// new one. It returns the chosen delay and whether a timer was armed.
func (s *Scheduler) Rearm(key session.Key, plan Plan) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restoreLocked()
	s.cancelLocked(key)
	if s.stopped || plan.Banned || plan.Disabled {
		s.saveLocked()
		return 0, false
	}
	delay := s.Delay(plan.State)
	s.armLocked(key, delay, time.Now().Add(delay))
	s.saveLocked()
	slog.Debug("reengage: armed", "user", key.UserID, "slot", key.Slot, "delay", delay, "state", plan.State)
	return delay, true
}

// Cancel drops the timer for key, if any.
func (s *Scheduler) Cancel(key session.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked()
	if s.cancelLocked(key) {
		s.saveLocked()
	}
}

// CancelUser drops every timer of a user.
func (s *Scheduler) CancelUser(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked()
	changed := false
	for key := range s.timers {
		if key.UserID == userID && s.cancelLocked(key) {
			changed = true
		}
	}
	if changed {
		s.saveLocked()
	}
}

// Pending returns the deadline for key.
func (s *Scheduler) Pending(key session.Key) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.timers[key]
	if !ok {
		return time.Time{}, false
	}
	return p.due, true
}

// Len returns the number of pending timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) armLocked(key session.Key, delay time.Duration, due time.Time) {
	s.gen++
	gen := s.gen
	p := &pending{gen: gen, due: due}
	p.timer = time.AfterFunc(delay, func() { s.expire(key, gen) })
	s.timers[key] = p
	s.observe(EventArmed)
}

func (s *Scheduler) cancelLocked(key session.Key) bool {
	p, ok := s.timers[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.timers, key)
	s.observe(EventCanceled)
	return true
}

func (s *Scheduler) expire(key session.Key, gen uint64) {
	s.mu.Lock()
	p, ok := s.timers[key]
	if s.stopped || !ok || p.gen != gen {
		s.mu.Unlock()
		s.observe(EventStale)
		slog.Debug("reengage: stale fire dropped", "user", key.UserID, "slot", key.Slot)
		return
	}
	delete(s.timers, key)
	s.saveLocked()
	ctx, fire := s.ctx, s.fire
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			s.observe(EventPanic)
			slog.Error("reengage: fire callback panicked", "user", key.UserID, "slot", key.Slot, "panic", r)
		}
	}()

	s.observe(EventFired)
	slog.Info("reengage: fired", "user", key.UserID, "slot", key.Slot)
	if fire != nil {
		fire(ctx, key)
	}
}

func (s *Scheduler) observe(event string) {
	if s.opts.Observe != nil {
		s.opts.Observe(event)
	}
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

type deadline struct {
	UserID  int64 `json:"userId"`
	Slot    int   `json:"slot"`
	DueAtMs int64 `json:"dueAtMs"`
}

type ledger struct {
	Version   int        `json:"version"`
	Deadlines []deadline `json:"deadlines"`
}

func (s *Scheduler) loadLocked() ([]deadline, error) {
	if s.opts.LedgerPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.opts.LedgerPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var l ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.opts.LedgerPath, err)
	}
	out := l.Deadlines[:0]
	for _, d := range l.Deadlines {
		if session.ValidSlot(d.Slot) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Scheduler) saveLocked() {
	if s.opts.LedgerPath == "" || s.stopped {
		return
	}
	l := ledger{Version: 1, Deadlines: make([]deadline, 0, len(s.timers))}
	for key, p := range s.timers {
		l.Deadlines = append(l.Deadlines, deadline{UserID: key.UserID, Slot: key.Slot, DueAtMs: p.due.UnixMilli()})
	}
	sort.Slice(l.Deadlines, func(i, k int) bool { return l.Deadlines[i].DueAtMs < l.Deadlines[k].DueAtMs })

	if err := os.MkdirAll(filepath.Dir(s.opts.LedgerPath), 0o755); err != nil {
		slog.Warn("reengage: mkdir failed", "err", err)
		return
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		slog.Warn("reengage: marshal failed", "err", err)
		return
	}
	tmp := s.opts.LedgerPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Warn("reengage: write failed", "err", err)
		return
	}
	if err := os.Rename(tmp, s.opts.LedgerPath); err != nil {
		slog.Warn("reengage: rename failed", "err", err)
	}
}
