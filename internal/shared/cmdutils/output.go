package cmdutils

import (
	"fmt"
	"io"
)

const logo = "💬"

// Logo is the glyph printed in front of CLI banners.
func Logo() string { return logo }

// PrintResponse writes one persona reply block to w.
func PrintResponse(w io.Writer, name, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(w, "\n%s %s\n%s\n\n", logo, name, text)
}
