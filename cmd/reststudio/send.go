package main

import (
	"fmt"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/reststudio/internal/executor"
	"github.com/unkn0wn-root/reststudio/internal/notify"
)

func newSendCmd(opts *options) *cobra.Command {
	var (
		req     requestFlags
		include bool
		quiet   bool
		timings bool
	)
	cmd := &cobra.Command{
		Use:   "send [url]",
		Short: "Send a request and record it in history",
		Example: heredoc.Doc(`
			reststudio send -e dev '{{host}}/users' -H 'Authorization: Bearer {{token}}'
			reststudio send -X POST https://httpbin.org/post -d '{"name":"Sam"}'
			reststudio send --curl "curl -X DELETE https://api.example.com/items/7"
		`),
		Args: cobra.MaximumNArgs(1),
	}
	req.register(cmd)
	cmd.Flags().BoolVarP(&include, "include", "i", false, "Print response headers")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the response body")
	cmd.Flags().BoolVarP(&timings, "timings", "t", false, "Print where the request time went")

	cmd.RunE = withApp(opts, func(a *app, args []string) error {
		request, warnings, err := req.build(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		for _, w := range warnings {
			a.styles.notice(a.errOut, notify.Notice{Level: notify.LevelWarning, Message: w})
		}
		exec, err := a.Executor()
		if err != nil {
			return err
		}

		notices := &notify.Collector{}
		res, err := exec.Send(a.ctx(), request, executor.SendOptions{
			Environment: a.env(),
			Locale:      a.settings.Locale,
			Notifier:    notices,
		})
		for _, n := range notices.Notices() {
			a.styles.notice(a.errOut, n)
		}
		if err != nil {
			return err
		}

		if !quiet {
			status := fmt.Sprintf("%d %s", res.Response.Status, res.Response.StatusText)
			fmt.Fprintf(a.out, "%s  %s  %s  %s\n",
				a.styles.status(res.Status, status),
				a.styles.dim.Render(res.Duration.Round(time.Millisecond).String()),
				a.styles.dim.Render(size(res.ResponseWeight)),
				a.styles.dim.Render("history "+res.HistoryID),
			)
			if res.ErrorDetails != "" {
				fmt.Fprintln(a.out, a.styles.failed.Render(res.ErrorDetails))
			}
			if timings {
				a.styles.timeline(a.out, res.Timeline)
			}
			if include {
				a.styles.headers(a.out, res.Response.Headers)
			}
			fmt.Fprintln(a.out)
		}
		if res.Response.Body != "" {
			fmt.Fprintln(a.out, res.Response.Body)
		}
		if res.HistoryErr != nil {
			a.styles.notice(a.errOut, notify.Notice{
				Level:   notify.LevelWarning,
				Message: "history record not finalized: " + res.HistoryErr.Error(),
			})
		}
		return nil
	})
	return cmd
}
