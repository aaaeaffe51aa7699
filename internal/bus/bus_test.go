package bus

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPublishInboundDelivers(t *testing.T) {
	b := NewMessageBus(1)
	ev := NewText("telegram", 7, 12, "hi")
	if err := b.PublishInbound(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if b.InboundSize() != 1 {
		t.Fatalf("size = %d", b.InboundSize())
	}
	got := <-b.InboundChan()
	if got.UserID != 7 || got.Slot != ActiveSlot || got.Text != "hi" {
		t.Errorf("got %+v", got)
	}
}

func TestPublishInboundHonoursContext(t *testing.T) {
	b := NewMessageBus(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := b.PublishInbound(ctx, NewSentinel(1, 2, "<silence>"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("я", 100)
	p := NewText("cli", 1, 0, long).Preview()
	if len([]rune(p)) != 83 {
		t.Errorf("preview runes = %d", len([]rune(p)))
	}
	img := InboundEvent{Kind: KindImage, Caption: "cat"}
	if img.Preview() != "[image] cat" {
		t.Errorf("preview = %q", img.Preview())
	}
}
