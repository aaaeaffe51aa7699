package channels

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reCodeFence  = regexp.MustCompile("(?s)```[\\w+-]*\\n?(.*?)```")
	reInlineCode = regexp.MustCompile("`([^`\\n]+)`")
	reHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	reQuote      = regexp.MustCompile(`(?m)^>\s?(.*)$`)
	reBullet     = regexp.MustCompile(`(?m)^[-*]\s+`)
)

// inline rules run in order on already escaped text.
var inlineRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`), `<a href="$2">$1</a>`},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "<b>$1</b>"},
	{regexp.MustCompile(`__(.+?)__`), "<b>$1</b>"},
	{regexp.MustCompile(`(^|[^\p{L}\p{N}*])\*([^*\n]+)\*([^\p{L}\p{N}*]|$)`), "$1<i>$2</i>$3"},
	{regexp.MustCompile(`(^|[^\p{L}\p{N}_])_([^_\n]+)_([^\p{L}\p{N}_]|$)`), "$1<i>$2</i>$3"},
	{regexp.MustCompile(`~~(.+?)~~`), "<s>$1</s>"},
}

// markdownToTelegramHTML renders the Markdown subset models produce into
// the HTML dialect accepted by the Bot API. Code spans are protected from
// inline formatting.
func markdownToTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	var fences, spans []string
	text = reCodeFence.ReplaceAllStringFunc(text, func(m string) string {
		fences = append(fences, reCodeFence.FindStringSubmatch(m)[1])
		return fmt.Sprintf("\x00F%d\x00", len(fences)-1)
	})
	text = reInlineCode.ReplaceAllStringFunc(text, func(m string) string {
		spans = append(spans, reInlineCode.FindStringSubmatch(m)[1])
		return fmt.Sprintf("\x00S%d\x00", len(spans)-1)
	})

	text = reHeading.ReplaceAllString(text, "**$1**")
	text = reQuote.ReplaceAllString(text, "$1")
	text = reBullet.ReplaceAllString(text, "• ")
	text = htmlEscape(text)
	for _, r := range inlineRules {
		text = r.re.ReplaceAllString(text, r.repl)
	}

	for i, s := range spans {
		text = strings.Replace(text, fmt.Sprintf("\x00S%d\x00", i), "<code>"+htmlEscape(s)+"</code>", 1)
	}
	for i, f := range fences {
		text = strings.Replace(text, fmt.Sprintf("\x00F%d\x00", i), "<pre><code>"+htmlEscape(f)+"</code></pre>", 1)
	}
	return text
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func htmlEscape(s string) string { return htmlEscaper.Replace(s) }
