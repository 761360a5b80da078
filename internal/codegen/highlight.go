package codegen

import (
	"io"

	"github.com/alecthomas/chroma/quick"
	"github.com/muesli/termenv"
)

const DefaultStyle = "monokai"

// FormatterFor picks the chroma terminal formatter matching what the
// terminal can display.
func FormatterFor(profile termenv.Profile) string {
	switch profile {
	case termenv.TrueColor:
		return "terminal16m"
	case termenv.ANSI256:
		return "terminal256"
	case termenv.ANSI:
		return "terminal16"
	default:
		return "noop"
	}
}

// Highlight writes code to w with syntax colors for lang. An Ascii profile
// writes the code unchanged.
func Highlight(w io.Writer, code string, lang Language, style string, profile termenv.Profile) error {
	if style == "" {
		style = DefaultStyle
	}
	formatter := FormatterFor(profile)
	if formatter == "noop" {
		_, err := io.WriteString(w, code)
		return err
	}
	return quick.Highlight(w, code, lang.lexer(), formatter, style)
}
