package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/unkn0wn-root/reststudio/internal/history"
	"github.com/unkn0wn-root/reststudio/internal/nettrace"
	"github.com/unkn0wn-root/reststudio/internal/notify"
)

type styles struct {
	renderer *lipgloss.Renderer
	ok       lipgloss.Style
	failed   lipgloss.Style
	pending  lipgloss.Style
	dim      lipgloss.Style
	key      lipgloss.Style
	heading  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		renderer: r,
		ok:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		failed:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		pending:  r.NewStyle().Foreground(lipgloss.Color("11")),
		dim:      r.NewStyle().Faint(true),
		key:      r.NewStyle().Foreground(lipgloss.Color("12")),
		heading:  r.NewStyle().Bold(true).Underline(true),
	}
}

func (s styles) status(st history.Status, text string) string {
	switch st {
	case history.StatusOK:
		return s.ok.Render(text)
	case history.StatusError:
		return s.failed.Render(text)
	default:
		return s.pending.Render(text)
	}
}

func (s styles) headers(w io.Writer, headers map[string]string) {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: %s\n", s.key.Render(name), headers[name])
	}
}

func (s styles) timeline(w io.Writer, tl *nettrace.Timeline) {
	if tl == nil {
		return
	}
	for _, p := range tl.Phases {
		line := fmt.Sprintf("%s %s", pad(string(p.Kind), 9), p.Duration.Round(time.Microsecond))
		if p.Err != "" {
			line += " " + s.failed.Render(p.Err)
		}
		fmt.Fprintln(w, s.dim.Render(line))
	}
	if tl.Reused {
		fmt.Fprintln(w, s.dim.Render("connection reused"))
	}
}

func (s styles) notice(w io.Writer, n notify.Notice) {
	style := s.pending
	if n.Level == notify.LevelError {
		style = s.failed
	}
	fmt.Fprintln(w, style.Render(string(n.Level)+":"), n.Message)
}

func size(n int) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// truncate cuts s to width display cells, counting wide runes twice.
func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func pad(s string, width int) string {
	return runewidth.FillRight(truncate(s, width), width)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
