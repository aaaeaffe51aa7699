package reengage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/crystaldolphin/confidant/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fastWindows = Windows{
	ShortMin: 20 * time.Millisecond,
	ShortMax: 30 * time.Millisecond,
	LongMin:  60 * time.Millisecond,
	LongMax:  80 * time.Millisecond,
}

type fireLog struct {
	mu   sync.Mutex
	keys []session.Key
}

func (f *fireLog) fire(_ context.Context, key session.Key) {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
}

func (f *fireLog) count(key session.Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.keys {
		if k == key {
			n++
		}
	}
	return n
}

func TestDelayRanges(t *testing.T) {
	s := New(Options{}, nil)
	for i := 0; i < 2000; i++ {
		d := s.Delay(session.ReengageDefault)
		require.GreaterOrEqual(t, d, 19*time.Hour)
		require.LessOrEqual(t, d, 24*time.Hour)

		d = s.Delay(session.ReengageFarewell)
		require.GreaterOrEqual(t, d, 48*time.Hour)
		require.LessOrEqual(t, d, 96*time.Hour)
	}
}

func TestRearmFiresOnce(t *testing.T) {
	log := &fireLog{}
	s := New(Options{Windows: fastWindows}, log.fire)
	defer s.Stop()

	key := session.Key{UserID: 1, Slot: 0}
	delay, armed := s.Rearm(key, Plan{State: session.ReengageDefault})
	require.True(t, armed)
	assert.GreaterOrEqual(t, delay, fastWindows.ShortMin)

	_, ok := s.Pending(key)
	assert.True(t, ok)

	require.Eventually(t, func() bool { return log.count(key) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, log.count(key))
	_, ok = s.Pending(key)
	assert.False(t, ok)
}

func TestRearmReplacesPendingTimer(t *testing.T) {
	log := &fireLog{}
	s := New(Options{Windows: fastWindows}, log.fire)
	defer s.Stop()

	key := session.Key{UserID: 2, Slot: 3}
	for i := 0; i < 10; i++ {
		s.Rearm(key, Plan{State: session.ReengageDefault})
		time.Sleep(2 * time.Millisecond)
	}
	assert.Equal(t, 1, s.Len())

	require.Eventually(t, func() bool { return log.count(key) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, log.count(key))
}

func TestCancelPreventsFire(t *testing.T) {
	log := &fireLog{}
	s := New(Options{Windows: fastWindows}, log.fire)
	defer s.Stop()

	key := session.Key{UserID: 3, Slot: 1}
	s.Rearm(key, Plan{})
	s.Cancel(key)
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, log.count(key))
}

func TestBannedAndDisabledDoNotArm(t *testing.T) {
	s := New(Options{Windows: fastWindows}, nil)
	defer s.Stop()

	key := session.Key{UserID: 4, Slot: 0}
	s.Rearm(key, Plan{})
	_, armed := s.Rearm(key, Plan{Banned: true})
	assert.False(t, armed)
	_, ok := s.Pending(key)
	assert.False(t, ok, "banned rearm must cancel the old timer")

	_, armed = s.Rearm(key, Plan{Disabled: true})
	assert.False(t, armed)
}

func TestCancelUser(t *testing.T) {
	s := New(Options{Windows: Windows{ShortMin: time.Hour, ShortMax: time.Hour, LongMin: time.Hour, LongMax: time.Hour}}, nil)
	defer s.Stop()

	s.Rearm(session.Key{UserID: 5, Slot: 0}, Plan{})
	s.Rearm(session.Key{UserID: 5, Slot: 4}, Plan{})
	s.Rearm(session.Key{UserID: 6, Slot: 0}, Plan{})

	s.CancelUser(5)
	assert.Equal(t, 1, s.Len())
	_, ok := s.Pending(session.Key{UserID: 6, Slot: 0})
	assert.True(t, ok)
}

func TestSlotSwitchArmsLeftSlotClearsEntered(t *testing.T) {
	s := New(Options{Windows: Windows{ShortMin: time.Hour, ShortMax: time.Hour, LongMin: time.Hour, LongMax: time.Hour}}, nil)
	defer s.Stop()

	a := session.Key{UserID: 7, Slot: 0}
	b := session.Key{UserID: 7, Slot: 1}
	s.Rearm(b, Plan{})

	// Leaving A for B.
	s.Rearm(a, Plan{})
	s.Cancel(b)

	_, okA := s.Pending(a)
	_, okB := s.Pending(b)
	assert.True(t, okA)
	assert.False(t, okB)
}

func TestPanickingCallbackIsContained(t *testing.T) {
	var calls atomic.Int32
	s := New(Options{Windows: fastWindows}, func(context.Context, session.Key) {
		calls.Add(1)
		panic("boom")
	})
	defer s.Stop()

	s.Rearm(session.Key{UserID: 8}, Plan{})
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestObserveEvents(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	s := New(Options{Windows: fastWindows, Observe: func(e string) {
		mu.Lock()
		seen[e]++
		mu.Unlock()
	}}, func(context.Context, session.Key) {})
	defer s.Stop()

	key := session.Key{UserID: 9}
	s.Rearm(key, Plan{})
	s.Rearm(key, Plan{})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[EventFired] == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, seen[EventArmed])
	assert.Equal(t, 1, seen[EventCanceled])
}

func TestLedgerPersistsAndRestores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reengagement.json")
	hour := Windows{ShortMin: time.Hour, ShortMax: time.Hour, LongMin: 2 * time.Hour, LongMax: 2 * time.Hour}

	first := New(Options{Windows: hour, LedgerPath: path}, nil)
	first.Rearm(session.Key{UserID: 10, Slot: 2}, Plan{})
	first.Rearm(session.Key{UserID: 11, Slot: 0}, Plan{State: session.ReengageFarewell})
	first.Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var l ledger
	require.NoError(t, json.Unmarshal(data, &l))
	require.Len(t, l.Deadlines, 2)

	second := New(Options{Windows: hour, LedgerPath: path}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = second.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return second.Len() == 2 }, time.Second, 5*time.Millisecond)

	due, ok := second.Pending(session.Key{UserID: 11, Slot: 0})
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), due, time.Minute)

	cancel()
	<-done
}

func TestOverdueDeadlineFiresAfterGrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reengagement.json")
	l := ledger{Version: 1, Deadlines: []deadline{
		{UserID: 12, Slot: 1, DueAtMs: time.Now().Add(-time.Hour).UnixMilli()},
		{UserID: 12, Slot: 99, DueAtMs: time.Now().Add(time.Hour).UnixMilli()},
	}}
	data, _ := json.Marshal(l)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	log := &fireLog{}
	s := New(Options{LedgerPath: path, Grace: 10 * time.Millisecond}, log.fire)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Start(ctx)
		close(done)
	}()

	key := session.Key{UserID: 12, Slot: 1}
	require.Eventually(t, func() bool { return log.count(key) == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, s.Len(), "invalid slot must not be restored")

	cancel()
	<-done
}

func TestRearmBeforeStartKeepsSavedDeadlines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reengagement.json")
	saved := time.Now().Add(3 * time.Hour)
	l := ledger{Version: 1, Deadlines: []deadline{{UserID: 10, Slot: 2, DueAtMs: saved.UnixMilli()}}}
	data, _ := json.Marshal(l)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	hour := Windows{ShortMin: time.Hour, ShortMax: time.Hour, LongMin: time.Hour, LongMax: time.Hour}
	s := New(Options{Windows: hour, LedgerPath: path}, nil)
	t.Cleanup(s.Stop)

	s.Rearm(session.Key{UserID: 20, Slot: 0}, Plan{})

	due, ok := s.Pending(session.Key{UserID: 10, Slot: 2})
	require.True(t, ok, "saved deadline must survive an early Rearm")
	assert.WithinDuration(t, saved, due, time.Second)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got ledger
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Len(t, got.Deadlines, 2)

	assert.Zero(t, s.Restore(), "ledger is read once")
	assert.Equal(t, 2, s.Len())
}

func TestRestoreLoadsLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reengagement.json")
	l := ledger{Version: 1, Deadlines: []deadline{
		{UserID: 1, Slot: 0, DueAtMs: time.Now().Add(time.Hour).UnixMilli()},
		{UserID: 2, Slot: 7, DueAtMs: time.Now().Add(2 * time.Hour).UnixMilli()},
	}}
	data, _ := json.Marshal(l)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s := New(Options{LedgerPath: path}, nil)
	t.Cleanup(s.Stop)

	assert.Equal(t, 2, s.Restore())
	assert.Equal(t, 2, s.Len())
}
