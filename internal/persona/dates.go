package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SpecialDate is a yearly event the persona knows about.
type SpecialDate struct {
	Date  string `yaml:"date"` // MM-DD
	Event string `yaml:"event"`
}

// Day parses Date.
func (d SpecialDate) Day() (time.Month, int, error) {
	t, err := time.Parse("01-02", strings.TrimSpace(d.Date))
	if err != nil {
		return 0, 0, fmt.Errorf("special date %q: %w", d.Date, err)
	}
	return t.Month(), t.Day(), nil
}

var exampleDates = []SpecialDate{
	{Date: "01-01", Event: "New Year"},
	{Date: "02-14", Event: "Valentine's Day"},
	{Date: "10-31", Event: "Halloween"},
}

// LoadDates reads a YAML list of special dates. Entries with a malformed
// date are dropped.
func LoadDates(path string) ([]SpecialDate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []SpecialDate
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := raw[:0]
	for _, d := range raw {
		if _, _, err := d.Day(); err != nil || strings.TrimSpace(d.Event) == "" {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// WriteExampleDates creates path with a few sample entries.
func WriteExampleDates(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(exampleDates)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// KnowledgeBlock renders dates for the system instruction.
func KnowledgeBlock(dates []SpecialDate) string {
	if len(dates) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[REFERENCE: SPECIAL DATES]\n")
	b.WriteString("You know about these special dates. When one arrives, congratulate the user. " +
		"If the user asks about one, use this information. Do not mention the list unless asked.")
	for _, d := range dates {
		m, day, err := d.Day()
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n- %s (date: %d %s)", d.Event, day, m)
	}
	return b.String()
}
