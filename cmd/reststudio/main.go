package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/reststudio/internal/docstore"
	"github.com/unkn0wn-root/reststudio/internal/telemetry"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// options are the persistent flags. Zero values mean "use settings".
type options struct {
	env            string
	locale         string
	logLevel       string
	varsBackend    docstore.Backend
	historyBackend docstore.Backend
	timeout        time.Duration
	insecure       bool
	follow         bool
	proxy          string
	http2          bool
	trace          telemetry.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{trace: telemetry.ConfigFromEnv(os.Getenv)}

	root := &cobra.Command{
		Use:   "reststudio",
		Short: "Compose, send and share HTTP requests",
		Long: heredoc.Doc(`
			reststudio sends HTTP requests with {{variable}} substitution from named
			environments, keeps an audit history of every send, turns a request into a
			shareable route and back, and generates client snippets in eight languages.

			Run "reststudio serve" to drive the same engine from a browser.
		`),
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.env, "env", "e", "", "Environment used for {{variable}} substitution")
	pf.StringVar(&opts.locale, "locale", "", "Locale segment of shared routes")
	pf.StringVar(&opts.logLevel, "log-level", "warning", "Log level (debug, info, warning, error)")
	pf.Var(&opts.varsBackend, "vars", "Variables backend, e.g. memory, file:/path or sqlite:/path/db")
	pf.Var(&opts.historyBackend, "history", "History backend, e.g. sqlite:/path/db or postgres:DSN")
	pf.DurationVar(&opts.timeout, "timeout", 0, "Request timeout")
	pf.BoolVar(&opts.insecure, "insecure", false, "Skip TLS certificate verification")
	pf.BoolVar(&opts.follow, "follow", true, "Follow redirects")
	pf.StringVar(&opts.proxy, "proxy", "", "HTTP proxy URL")
	pf.BoolVar(&opts.http2, "http2", false, "Negotiate HTTP/2 over TLS")
	pf.StringVar(&opts.trace.Endpoint, "trace-otel-endpoint", opts.trace.Endpoint, "OTLP collector endpoint for send spans")
	pf.BoolVar(&opts.trace.Insecure, "trace-otel-insecure", opts.trace.Insecure, "Disable TLS for OTLP trace export")
	pf.StringVar(&opts.trace.ServiceName, "trace-otel-service", opts.trace.ServiceName, "service.name resource attribute")

	root.AddCommand(
		newServeCmd(opts),
		newSendCmd(opts),
		newCodegenCmd(opts),
		newImportCurlCmd(opts),
		newEnvCmd(opts),
		newRouteCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
