package media

import (
	"context"
	"testing"
)

func TestFirstFrameEmptyInput(t *testing.T) {
	if _, err := NewFFmpeg("").FirstFrame(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestFirstFrameMissingBinary(t *testing.T) {
	f := NewFFmpeg("definitely-not-ffmpeg-binary")
	if f.Available() {
		t.Skip("unexpected binary on PATH")
	}
	if _, err := f.FirstFrame(context.Background(), []byte("not a video")); err == nil {
		t.Fatal("expected error when binary is missing")
	}
}

func TestFirstFrameRejectsGarbage(t *testing.T) {
	f := NewFFmpeg("")
	if !f.Available() {
		t.Skip("ffmpeg not installed")
	}
	if _, err := f.FirstFrame(context.Background(), []byte("not a video")); err == nil {
		t.Fatal("expected decode error")
	}
}
