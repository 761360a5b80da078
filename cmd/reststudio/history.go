package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/reststudio/internal/history"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

const urlColumnWidth = 48

func newHistoryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded sends",
	}

	withHistory := func(fn func(a *app, h *history.Synchronizer, args []string) error) func(*cobra.Command, []string) error {
		return withApp(opts, func(a *app, args []string) error {
			h, err := a.History()
			if err != nil {
				return err
			}
			return fn(a, h, args)
		})
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: withHistory(func(a *app, h *history.Synchronizer, _ []string) error {
			records, err := h.List(a.ctx())
			if err != nil {
				return err
			}
			if limit > 0 && limit < len(records) {
				records = records[:limit]
			}
			for _, rec := range records {
				fmt.Fprintln(a.out, historyRow(a.styles, rec))
			}
			return nil
		}),
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to show (0 for all)")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print one record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withHistory(func(a *app, h *history.Synchronizer, args []string) error {
			rec, err := findRecord(a, h, args[0])
			if err != nil {
				return err
			}
			return writeJSON(a.out, rec)
		}),
	}

	diff := &cobra.Command{
		Use:   "diff ID ID",
		Short: "Unified diff of two recorded responses",
		Args:  cobra.ExactArgs(2),
		RunE: withHistory(func(a *app, h *history.Synchronizer, args []string) error {
			left, err := findRecord(a, h, args[0])
			if err != nil {
				return err
			}
			right, err := findRecord(a, h, args[1])
			if err != nil {
				return err
			}
			out := diffRecords(left, right)
			if out == "" {
				fmt.Fprintln(a.errOut, "responses are identical")
				return nil
			}
			fmt.Fprint(a.out, out)
			return nil
		}),
	}

	cmd.AddCommand(list, show, diff)
	return cmd
}

func findRecord(a *app, h *history.Synchronizer, id string) (history.Record, error) {
	rec, ok, err := h.Get(a.ctx(), id)
	if err != nil {
		return history.Record{}, err
	}
	if !ok {
		return history.Record{}, fmt.Errorf("history record %q not found", id)
	}
	return rec, nil
}

func historyRow(s styles, rec history.Record) string {
	when := "-"
	if !rec.CreatedAt.IsZero() {
		when = rec.CreatedAt.Local().Format(time.DateTime)
	}
	code := "-"
	if rec.Status.Terminal() {
		code = fmt.Sprint(rec.Code)
	}
	return strings.Join([]string{
		s.dim.Render(when),
		s.status(rec.Status, pad(string(rec.Status), 10)),
		pad(code, 3),
		pad(rec.Method, 7),
		pad(rec.URLWithVars, urlColumnWidth),
		pad(fmt.Sprintf("%dms", rec.Duration), 8),
		pad(size(rec.ResponseWeight), 8),
		s.dim.Render(rec.ID),
	}, "  ")
}

// diffRecords compares what a reader cares about: status line, headers
// and body. Headers are sorted so map order never shows up as a change.
func diffRecords(left, right history.Record) string {
	l, r := recordText(left), recordText(right)
	if l == r {
		return ""
	}
	return udiff.Unified(left.ID, right.ID, l, r)
}

func recordText(rec history.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", rec.Method, rec.URLWithVars)
	resp := rec.Response
	if resp == nil {
		resp = &restmodel.Response{}
	}
	fmt.Fprintf(&b, "%d %s\n", resp.Status, resp.StatusText)
	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\n", name, resp.Headers[name])
	}
	b.WriteString("\n")
	b.WriteString(prettyBody(resp.Body))
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// prettyBody indents JSON so a diff shows the changed field, not the
// whole single-line document.
func prettyBody(body string) string {
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return body
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return body
	}
	return string(out)
}
