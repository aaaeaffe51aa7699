// Package persona loads the persona's prompts and knowledge from the
// workspace and assembles the per-slot system instruction.
package persona

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crystaldolphin/confidant/internal/narrator"
	"github.com/crystaldolphin/confidant/internal/session"
)

// DefaultWelcome is used when no welcome file exists.
const DefaultWelcome = "Hi! Send /start to begin, or /help to see what I can do."

const examplePrompt = `You are a warm, witty companion chatting with the user.
Keep replies short and personal. Use <split> to break a reply into several messages.
Report relationship changes with <relationship level = N> (from -100 to 100),
<relationship status: ...> and <moodlet: ...>. Save facts worth remembering with <remember: ...>.
`

// Paths locate the persona files.
type Paths struct {
	PromptsDir         string
	NarratorPromptsDir string
	DatesFile          string
	WelcomeFile        string
}

// Library holds the loaded persona material. Safe for concurrent use.
type Library struct {
	paths Paths

	mu       sync.RWMutex
	system   string
	narrator string
	welcome  string
	dates    []SpecialDate
}

// NewLibrary creates an empty Library; call Load to read files.
func NewLibrary(paths Paths) *Library {
	return &Library{paths: paths, welcome: DefaultWelcome}
}

// Load reads every persona file. A missing persona prompt directory is
// created with an example prompt; missing optional files are not errors.
func (l *Library) Load() error {
	if err := ensureExamplePrompt(l.paths.PromptsDir); err != nil {
		slog.Warn("persona: could not create example prompt", "dir", l.paths.PromptsDir, "err", err)
	}
	system, err := LoadPromptDir(l.paths.PromptsDir)
	if err != nil {
		return fmt.Errorf("persona: load prompts: %w", err)
	}
	if system == "" {
		slog.Warn("persona: system prompt is empty", "dir", l.paths.PromptsDir)
	}

	narr, err := LoadPromptDir(l.paths.NarratorPromptsDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("persona: load narrator prompts: %w", err)
	}
	if narr == "" {
		slog.Warn("persona: narrator prompt is empty", "dir", l.paths.NarratorPromptsDir)
	}

	welcome := DefaultWelcome
	if l.paths.WelcomeFile != "" {
		data, err := os.ReadFile(l.paths.WelcomeFile)
		switch {
		case err == nil && strings.TrimSpace(string(data)) != "":
			welcome = strings.TrimSpace(string(data))
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			slog.Warn("persona: welcome file unreadable", "path", l.paths.WelcomeFile, "err", err)
		}
	}

	l.mu.Lock()
	l.system = system
	l.narrator = narr
	l.welcome = welcome
	l.mu.Unlock()

	if err := l.ReloadDates(); err != nil {
		slog.Warn("persona: special dates not loaded", "err", err)
	}
	slog.Info("persona: loaded", "promptLen", len(system), "narratorLen", len(narr), "dates", len(l.Dates()))
	return nil
}

// ReloadDates re-reads the special dates file, creating an example when
// it is missing. The previous list is kept on error.
func (l *Library) ReloadDates() error {
	if l.paths.DatesFile == "" {
		return nil
	}
	dates, err := LoadDates(l.paths.DatesFile)
	if errors.Is(err, fs.ErrNotExist) {
		if werr := WriteExampleDates(l.paths.DatesFile); werr != nil {
			return werr
		}
		dates, err = LoadDates(l.paths.DatesFile)
	}
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.dates = dates
	l.mu.Unlock()
	return nil
}

func (l *Library) SystemPrompt() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.system
}

// NarratorPrompt implements narrator.PromptSource.
func (l *Library) NarratorPrompt() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.narrator
}

func (l *Library) Welcome() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.welcome
}

func (l *Library) Dates() []SpecialDate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]SpecialDate(nil), l.dates...)
}

// Compose builds the system instruction for one slot: the base prompt,
// the special dates, the slot's character and biography, and the
// narrator rule when a directive is set.
func (l *Library) Compose(st session.SlotState) string {
	var b strings.Builder
	b.WriteString(l.SystemPrompt())

	if block := KnowledgeBlock(l.Dates()); block != "" {
		b.WriteString("\n\n")
		b.WriteString(block)
	}
	if c := strings.TrimSpace(st.Character); c != "" {
		fmt.Fprintf(&b, "\n\n[YOUR CHARACTER]: Always stay in this role: %q", c)
	}
	if bio := strings.TrimSpace(st.Bio); bio != "" {
		fmt.Fprintf(&b, "\n\n[USER BIOGRAPHY]: Take this about the user into account: %q", bio)
	}
	if strings.TrimSpace(st.NarratorDirective) != "" {
		b.WriteString("\n\n")
		b.WriteString(narrator.Rule)
	}
	return strings.TrimSpace(b.String())
}

// CharacterEntry wraps the first message of a slot so the model enters
// the role immediately.
func CharacterEntry(character, input string) string {
	return fmt.Sprintf("(SYSTEM INSTRUCTION FOR YOU, NOT FOR THE USER: this is the start of the dialogue. "+
		"From the very first word fully take on the following role and never act as a plain assistant. "+
		"Your role: %q. Start your first reply in this role, addressing the user.)\n\n"+
		"Message from the user to answer in role: %q", character, input)
}

// TimeTag renders the user's local time for an offset in minutes east of UTC.
func TimeTag(now time.Time, offsetMinutes int) string {
	local := now.UTC().Add(time.Duration(offsetMinutes) * time.Minute)
	return fmt.Sprintf("<user local time: %s> Act according to this context: greet the morning or night, or mention the evening, when it fits.",
		local.Format("02.01.2006 15:04"))
}

// LoadPromptDir concatenates every .txt file under dir, recursively, in
// lexical path order.
func LoadPromptDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".txt") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(files)

	parts := make([]string, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", err
		}
		if s := strings.TrimSpace(string(data)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func ensureExamplePrompt(dir string) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	slog.Info("persona: created example prompt", "dir", dir)
	return os.WriteFile(filepath.Join(dir, "persona.txt"), []byte(examplePrompt), 0o644)
}
