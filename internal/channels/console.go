package channels

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crystaldolphin/confidant/internal/bus"
	"github.com/crystaldolphin/confidant/internal/schema"
	"github.com/crystaldolphin/confidant/internal/shared/cmdutils"
)

// ConsoleUserID is the user id every console line is attributed to.
const ConsoleUserID int64 = 1

var consoleExitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

// ConsoleChannel runs one conversation over a reader/writer pair, usually
// the terminal. Documents are written to ExportDir.
type ConsoleChannel struct {
	Base
	in        io.Reader
	out       io.Writer
	persona   string
	exportDir string

	mu     sync.Mutex
	nextID atomic.Int64
}

// NewConsoleChannel creates a ConsoleChannel.
func NewConsoleChannel(b bus.Bus, in io.Reader, out io.Writer, persona, exportDir string) *ConsoleChannel {
	return &ConsoleChannel{
		Base:      NewBase("console", b, nil),
		in:        in,
		out:       out,
		persona:   persona,
		exportDir: exportDir,
	}
}

func (c *ConsoleChannel) Name() string { return "console" }

// Start reads lines until EOF, an exit command, or ctx cancellation.
func (c *ConsoleChannel) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.printf("%s Console chat ready. Type 'exit' or press Ctrl+C to quit.\n\n", cmdutils.Logo())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if consoleExitCommands[strings.ToLower(line)] {
				c.printf("Goodbye!\n")
				return nil
			}
			id := int(c.nextID.Add(1))
			ev := bus.NewText("", ConsoleUserID, id, line)
			ev.Timestamp = time.Now()
			c.HandleEvent(ctx, "console", ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *ConsoleChannel) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *ConsoleChannel) SendText(_ context.Context, _ int64, text string, _ schema.SendOptions) (int, error) {
	c.mu.Lock()
	cmdutils.PrintResponse(c.out, c.persona, text)
	c.mu.Unlock()
	return int(c.nextID.Add(1)), nil
}

func (c *ConsoleChannel) SendDocument(_ context.Context, _ int64, name string, data []byte) error {
	dir := c.exportDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	c.printf("  ↳ saved %s\n", path)
	return nil
}

func (c *ConsoleChannel) SendPresence(context.Context, int64) error { return nil }

func (c *ConsoleChannel) Reachable(context.Context, int64) error { return nil }

// FetchFile reads a local path; console attachments are file names.
func (c *ConsoleChannel) FetchFile(_ context.Context, fileRef string) ([]byte, error) {
	data, err := os.ReadFile(fileRef)
	if err != nil {
		return nil, fmt.Errorf("console: %w", err)
	}
	return data, nil
}
