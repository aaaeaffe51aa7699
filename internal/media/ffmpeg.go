// Package media turns animated media into still images the generator can
// look at.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// FFmpeg extracts the first frame of a video or animation as PNG by
// shelling out to the ffmpeg binary.
type FFmpeg struct {
	Binary  string
	TempDir string
	Timeout time.Duration
}

// NewFFmpeg returns a decoder using binary, or "ffmpeg" from PATH.
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{Binary: binary, Timeout: 30 * time.Second}
}

// Available reports whether the binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Binary)
	return err == nil
}

// FirstFrame implements schema.FrameDecoder. The input is written to a
// temporary file because MP4 containers need a seekable source.
func (f *FFmpeg) FirstFrame(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("ffmpeg: empty input")
	}
	dir, err := os.MkdirTemp(f.TempDir, "confidant-frame-*")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input")
	out := filepath.Join(dir, "frame.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("ffmpeg: write input: %w", err)
	}

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, f.Binary,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in, "-frames:v", "1", out)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("ffmpeg: %s", msg)
	}

	frame, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: no frame produced: %w", err)
	}
	return frame, nil
}
