package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/reststudio/internal/config"
	"github.com/unkn0wn-root/reststudio/internal/docstore"
	"github.com/unkn0wn-root/reststudio/internal/executor"
	"github.com/unkn0wn-root/reststudio/internal/history"
	"github.com/unkn0wn-root/reststudio/internal/httpclient"
	"github.com/unkn0wn-root/reststudio/internal/metrics"
	"github.com/unkn0wn-root/reststudio/internal/notify"
	"github.com/unkn0wn-root/reststudio/internal/telemetry"
	"github.com/unkn0wn-root/reststudio/internal/vars"
)

// app holds what one command invocation needs. Stores are opened on first
// use so commands that never touch storage never create files.
type app struct {
	cmd      *cobra.Command
	opts     *options
	settings config.Settings
	log      *logrus.Logger
	notifier notify.Notifier
	out      io.Writer
	errOut   io.Writer
	styles   styles

	varsDocs    docstore.Store
	historyDocs docstore.Store
	vars        *vars.Store
	history     *history.Synchronizer
	telemetry   telemetry.Instrumenter
	sends       *metrics.Sends
	registry    *prometheus.Registry
	exec        *executor.Executor
}

func newApp(cmd *cobra.Command, opts *options) (*app, error) {
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	settings, _, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, opts, &settings)

	return &app{
		cmd:      cmd,
		opts:     opts,
		settings: settings,
		log:      log,
		notifier: notify.Log{Logger: log},
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		styles:   newStyles(lipgloss.NewRenderer(cmd.OutOrStdout())),
	}, nil
}

// applyFlags lets explicitly set flags win over the settings file.
func applyFlags(cmd *cobra.Command, opts *options, s *config.Settings) {
	flags := cmd.Flags()
	if opts.env != "" {
		s.DefaultEnvironment = opts.env
	}
	if opts.locale != "" {
		s.Locale = strings.ToLower(opts.locale)
	}
	if flags.Changed("vars") {
		s.Variables = opts.varsBackend.String()
	}
	if flags.Changed("history") {
		s.History = opts.historyBackend.String()
	}
	if flags.Changed("timeout") && opts.timeout > 0 {
		s.HTTP.Timeout = config.Duration(opts.timeout)
	}
	if flags.Changed("insecure") {
		s.HTTP.Insecure = opts.insecure
	}
	if flags.Changed("follow") {
		s.HTTP.FollowRedirects = opts.follow
	}
	if flags.Changed("proxy") {
		s.HTTP.Proxy = opts.proxy
	}
	if flags.Changed("http2") {
		s.HTTP.HTTP2 = opts.http2
	}
}

func (a *app) ctx() context.Context {
	return a.cmd.Context()
}

func (a *app) env() string {
	return a.settings.DefaultEnvironment
}

func (a *app) Vars() (*vars.Store, error) {
	if a.vars != nil {
		return a.vars, nil
	}
	backend, err := a.settings.VariablesBackend()
	if err != nil {
		return nil, err
	}
	docs, err := backend.Open(a.ctx())
	if err != nil {
		return nil, err
	}
	store := vars.NewStore(vars.DocumentRepository{Store: docs}, vars.WithLogger(a.log))
	if err := store.Load(a.ctx()); err != nil {
		_ = docs.Close()
		return nil, err
	}
	a.varsDocs = docs
	a.vars = store
	return store, nil
}

func (a *app) Telemetry() telemetry.Instrumenter {
	if a.telemetry != nil {
		return a.telemetry
	}
	cfg := a.opts.trace
	cfg.Version = version
	inst, err := telemetry.New(cfg)
	if err != nil {
		a.log.WithError(err).Warn("telemetry init failed; spans disabled")
		inst = telemetry.Noop()
	}
	a.telemetry = inst
	return inst
}

func (a *app) History() (*history.Synchronizer, error) {
	if a.history != nil {
		return a.history, nil
	}
	backend, err := a.settings.HistoryBackend()
	if err != nil {
		return nil, err
	}
	docs, err := backend.Open(a.ctx())
	if err != nil {
		return nil, err
	}
	a.historyDocs = docs
	a.history = history.New(docs,
		history.WithLogger(a.log),
		history.WithReporter(a.Telemetry()),
	)
	return a.history, nil
}

// Registry registers the send collectors once per process.
func (a *app) Registry() *prometheus.Registry {
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
		a.sends = metrics.NewSends()
		if err := a.sends.Register(a.registry); err != nil {
			a.log.WithError(err).Warn("metrics registration failed")
		}
	}
	return a.registry
}

func (a *app) Executor() (*executor.Executor, error) {
	if a.exec != nil {
		return a.exec, nil
	}
	vs, err := a.Vars()
	if err != nil {
		return nil, err
	}
	hist, err := a.History()
	if err != nil {
		return nil, err
	}
	a.Registry()
	a.exec = executor.New(executor.Config{
		Variables: vs,
		History:   hist,
		Caller:    httpclient.NewClient(a.settings.HTTPOptions()),
		Notifier:  a.notifier,
		Logger:    a.log,
		Telemetry: a.Telemetry(),
		Metrics:   a.sends,
	})
	return a.exec, nil
}

func (a *app) Close() error {
	var errs []error
	if a.vars != nil && a.vars.Dirty() {
		errs = append(errs, a.vars.Flush(context.Background()))
	}
	if a.varsDocs != nil {
		errs = append(errs, a.varsDocs.Close())
	}
	if a.historyDocs != nil {
		errs = append(errs, a.historyDocs.Close())
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.telemetry.Shutdown(ctx))
		cancel()
	}
	return errors.Join(errs...)
}

// withApp runs fn with an opened app and always closes it.
func withApp(opts *options, fn func(a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, opts)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return fn(a, args)
	}
}
