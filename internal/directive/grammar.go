// Package directive parses and applies the tags a persona embeds in its
// replies.
//
// A tag is "<" NAME [ (":" | "=") ARGUMENT ] ">". Names are matched
// case-insensitively with runs of whitespace collapsed, so
// "<Relationship  Level = 20>" and "<relationship level: 20>" are the same
// command. Parsing never edits the text it scans.
package directive

import (
	"regexp"
	"strings"
)

var (
	tagPattern   = regexp.MustCompile(`<([^<>]*)>`)
	splitPattern = regexp.MustCompile(`(?i)<\s*(?:split|разделить сообщение)\s*>`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// DebugSeparator is shown between chunks when tags are visible.
const DebugSeparator = "_<split>_"

// Command is one parsed tag.
type Command struct {
	Name   string // normalised name
	Arg    string // trimmed argument, empty when absent
	HasArg bool
	Raw    string // the tag as it appeared, brackets included
}

// Parse returns every tag in text, in order of appearance.
func Parse(text string) []Command {
	matches := tagPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	cmds := make([]Command, 0, len(matches))
	for _, m := range matches {
		cmds = append(cmds, parseTag(m[0], m[1]))
	}
	return cmds
}

func parseTag(raw, body string) Command {
	cmd := Command{Raw: raw}
	if i := strings.IndexAny(body, ":="); i >= 0 {
		cmd.Name = NormalizeName(body[:i])
		cmd.Arg = strings.TrimSpace(body[i+1:])
		cmd.HasArg = true
		return cmd
	}
	cmd.Name = NormalizeName(body)
	return cmd
}

// NormalizeName lower-cases name and collapses whitespace.
func NormalizeName(name string) string {
	return spaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

// Strip removes every tag from text and trims the result.
func Strip(text string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(text, ""))
}

// StrippedLen counts the runes left once tags are removed. Surrounding
// whitespace is kept so the count tracks what a person would type.
func StrippedLen(text string) int {
	return len([]rune(tagPattern.ReplaceAllString(text, "")))
}

// Split cuts text on every split marker. It always returns at least one
// element.
func Split(text string) []string {
	return splitPattern.Split(text, -1)
}

// IsSplitMarker reports whether the command is the split marker.
func IsSplitMarker(c Command) bool {
	return splitPattern.MatchString(c.Raw)
}
