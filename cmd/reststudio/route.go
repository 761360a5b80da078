package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/reststudio/internal/codec"
	"github.com/unkn0wn-root/reststudio/internal/notify"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
	"github.com/unkn0wn-root/reststudio/internal/watcher"
)

func newRouteCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Convert between a request and its shareable route",
	}

	var (
		req       requestFlags
		requestID string
	)
	encode := &cobra.Command{
		Use:   "encode [url]",
		Short: "Print the route for a request",
		Args:  cobra.MaximumNArgs(1),
	}
	req.register(encode)
	encode.Flags().StringVar(&requestID, "request-id", "", "Request id carried in the route query")
	encode.RunE = withApp(opts, func(a *app, args []string) error {
		request, _, err := req.build(args, encode.InOrStdin())
		if err != nil {
			return err
		}
		c := codec.New(stderrNotices(a))
		route, err := c.BuildRoute(codec.Route{
			Locale:    a.settings.Locale,
			Request:   request,
			RequestID: requestID,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, route)
		return nil
	})

	decode := &cobra.Command{
		Use:   "decode ROUTE",
		Short: "Print the request a route or shared link encodes",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(a *app, args []string) error {
			path, query, err := splitRoute(args[0])
			if err != nil {
				return err
			}
			c := codec.New(stderrNotices(a))
			route, err := c.ParseRoute(path, query)
			if err != nil {
				return err
			}
			if route.Request.Headers == nil {
				route.Request.Headers = []restmodel.Header{}
			}
			return writeJSON(a.out, struct {
				Locale    string            `json:"locale"`
				RequestID string            `json:"requestId,omitempty"`
				Request   restmodel.Request `json:"request"`
			}{route.Locale, route.RequestID, route.Request})
		}),
	}

	var (
		watchID  string
		interval time.Duration
	)
	watch := &cobra.Command{
		Use:   "watch FILE",
		Short: "Print the route of a request JSON file each time it changes",
		Long: heredoc.Doc(`
			Watch a file holding a request as JSON ({"method","url","body","headers"})
			and print its route whenever the file changes. Output is debounced by the
			address_delay setting and repeated routes are not printed again.
		`),
		Args: cobra.ExactArgs(1),
	}
	watch.Flags().StringVar(&watchID, "request-id", "", "Request id carried in the route query")
	watch.Flags().DurationVar(&interval, "interval", 0, "Polling interval (default 500ms)")
	watch.RunE = withApp(opts, func(a *app, args []string) error {
		c := codec.New(stderrNotices(a))
		addr := codec.NewAddressSync(&printedLocation{w: a.out}, nil, a.settings.AddressDelay.Std())
		defer addr.Close()

		w := watcher.New(args[0], watcher.Options{Interval: interval})
		return w.Run(a.ctx(), func(data []byte) {
			var req restmodel.Request
			if err := json.Unmarshal(data, &req); err != nil {
				a.styles.notice(a.errOut, notify.Notice{
					Level:   notify.LevelWarning,
					Message: fmt.Sprintf("%s is not a request: %v", w.Path(), err),
				})
				return
			}
			route, err := c.BuildRoute(codec.Route{Locale: a.settings.Locale, Request: req, RequestID: watchID})
			if err != nil {
				a.styles.notice(a.errOut, notify.Notice{Level: notify.LevelError, Message: err.Error()})
				return
			}
			addr.Schedule(route)
		})
	})

	cmd.AddCommand(encode, decode, watch)
	return cmd
}

// printedLocation is an address bar whose history is the printed lines.
type printedLocation struct {
	mu      sync.Mutex
	w       io.Writer
	current string
}

func (l *printedLocation) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *printedLocation) Replace(pathAndQuery string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = pathAndQuery
	fmt.Fprintln(l.w, pathAndQuery)
}

// splitRoute accepts a bare "/en/restful/..." path or a full shared link.
func splitRoute(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse route: %w", err)
	}
	return u.EscapedPath(), u.RawQuery, nil
}

func stderrNotices(a *app) notify.Notifier {
	return notify.Func(func(n notify.Notice) {
		a.styles.notice(a.errOut, n)
	})
}
