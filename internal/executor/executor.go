// Package executor turns a request model and an environment into a network
// call, bracketed by a two-phase history write.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/reststudio/internal/codec"
	"github.com/unkn0wn-root/reststudio/internal/errdef"
	"github.com/unkn0wn-root/reststudio/internal/history"
	"github.com/unkn0wn-root/reststudio/internal/httpclient"
	"github.com/unkn0wn-root/reststudio/internal/metrics"
	"github.com/unkn0wn-root/reststudio/internal/nettrace"
	"github.com/unkn0wn-root/reststudio/internal/notify"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
	"github.com/unkn0wn-root/reststudio/internal/telemetry"
)

const networkErrorText = "Network Error"

// ErrSendInFlight is returned when the same request is sent again before
// the previous send of it finished.
var ErrSendInFlight = errors.New("request is already being sent")

type Variables interface {
	SubstituteRequest(req restmodel.Request, env string) restmodel.Request
	GetEnvVariables(env string) map[string]string
}

type Recorder interface {
	Create(ctx context.Context, in history.Initial) (string, error)
	Finalize(ctx context.Context, id string, t history.Terminal) error
}

type Config struct {
	Variables Variables
	History   Recorder
	Caller    httpclient.Caller
	Codec     *codec.Codec
	Clock     clock.Clock
	Notifier  notify.Notifier
	Logger    logrus.FieldLogger
	Telemetry telemetry.Instrumenter
	Metrics   *metrics.Sends
}

type SendOptions struct {
	Environment string
	Locale      string
	// RequestID is stored on the history record to tie it to the route
	// that carried it.
	RequestID string
	// Notifier also receives this send's notices, next to the executor's.
	Notifier notify.Notifier
}

type Result struct {
	Response       restmodel.Response
	Status         history.Status
	HistoryID      string
	URL            string
	Duration       time.Duration
	RequestWeight  int
	ResponseWeight int
	ErrorDetails   string
	// Timeline is nil when no response arrived.
	Timeline *nettrace.Timeline
	// HistoryErr is set when the record could not be finalized. The
	// response is still valid; the stored record stays "in process".
	HistoryErr error
}

type Executor struct {
	vars      Variables
	history   Recorder
	caller    httpclient.Caller
	codec     *codec.Codec
	clock     clock.Clock
	notifier  notify.Notifier
	log       logrus.FieldLogger
	telemetry telemetry.Instrumenter
	metrics   *metrics.Sends

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New(cfg Config) *Executor {
	e := &Executor{
		vars:      cfg.Variables,
		history:   cfg.History,
		caller:    cfg.Caller,
		codec:     cfg.Codec,
		clock:     cfg.Clock,
		notifier:  cfg.Notifier,
		log:       cfg.Logger,
		telemetry: cfg.Telemetry,
		metrics:   cfg.Metrics,
		inFlight:  make(map[string]struct{}),
	}
	if e.clock == nil {
		e.clock = clock.New()
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	if e.telemetry == nil {
		e.telemetry = telemetry.Noop()
	}
	if e.codec == nil {
		e.codec = codec.New(e.notifier)
	}
	return e
}

// Send runs one request. Only an invalid target URL, a failed history
// create, or an overlapping send of the same request return an error;
// network failures and HTTP error statuses come back as an error Result.
func (e *Executor) Send(ctx context.Context, req restmodel.Request, opts SendOptions) (*Result, error) {
	req.Method = restmodel.NormalizeMethod(req.Method)
	path := e.routePath(req, opts.Locale)

	key := opts.Environment + "\x00" + path + "?" + codec.BuildQuery(req.Headers, "")
	if !e.acquire(key) {
		return nil, ErrSendInFlight
	}
	defer e.release(key)

	notifier := e.notifier
	if opts.Notifier != nil {
		notifier = notify.Tee(e.notifier, opts.Notifier)
	}

	sub := req
	if e.vars != nil {
		sub = e.vars.SubstituteRequest(req, opts.Environment)
	}

	target, err := buildTarget(sub.URL, sub.Headers)
	if err != nil {
		notify.Error(notifier, fmt.Sprintf("Invalid URL: %s", sub.URL))
		return nil, err
	}

	body := ""
	if restmodel.MethodAllowsBody(sub.Method) {
		body = sub.Body
	}
	requestWeight := len(body)

	var variables map[string]string
	if e.vars != nil {
		variables = e.vars.GetEnvVariables(opts.Environment)
	}

	id, err := e.history.Create(ctx, history.Initial{
		Method:        sub.Method,
		Path:          path,
		URLWithVars:   target,
		Headers:       sub.Headers,
		Body:          body,
		Variables:     variables,
		Base64URL:     e.codec.EncodeURL(req.URL),
		RequestID:     opts.RequestID,
		RequestWeight: requestWeight,
	})
	if err != nil {
		notify.Error(notifier, "Could not save the request to history; it was not sent")
		return nil, err
	}

	spanCtx, span := e.telemetry.Start(ctx, telemetry.SendStart{
		Method:       sub.Method,
		URL:          target,
		Environment:  opts.Environment,
		RequestBytes: requestWeight,
	})
	done := e.metrics.Begin()

	start := e.clock.Now()
	reply, callErr := e.caller.Call(spanCtx, target, httpclient.CallOptions{
		Method:  sub.Method,
		Headers: sub.Headers,
		Body:    body,
	})
	elapsed := e.clock.Now().Sub(start)
	done()

	res := &Result{
		HistoryID:     id,
		URL:           target,
		Duration:      elapsed,
		RequestWeight: requestWeight,
	}
	if callErr != nil {
		res.Response = restmodel.Response{
			Status:     0,
			StatusText: networkErrorText,
			Headers:    map[string]string{},
		}
		res.Status = history.StatusError
		res.ErrorDetails = networkErrorText + ": " + errdef.Message(callErr)
	} else {
		text := reply.Text()
		res.Response = restmodel.Response{
			Status:     reply.Status,
			StatusText: StatusText(reply.Status, reply.StatusText),
			Headers:    restmodel.FlattenHeaders(reply.Headers),
			Body:       text,
		}
		res.ResponseWeight = len(text)
		res.Timeline = reply.Timeline
		if reply.Status >= 200 && reply.Status < 300 {
			res.Status = history.StatusOK
		} else {
			res.Status = history.StatusError
			res.ErrorDetails = fmt.Sprintf("HTTP %d: %s", reply.Status, res.Response.StatusText)
		}
	}

	response := res.Response
	// A caller that gave up mid-send still gets its record finalized.
	res.HistoryErr = e.history.Finalize(context.WithoutCancel(spanCtx), id, history.Terminal{
		Status:         res.Status,
		Code:           res.Response.Status,
		Duration:       elapsed.Milliseconds(),
		ResponseWeight: res.ResponseWeight,
		Response:       &response,
		ErrorDetails:   res.ErrorDetails,
	})

	span.End(telemetry.SendResult{
		Err:           callErr,
		StatusCode:    res.Response.Status,
		Status:        string(res.Status),
		ResponseBytes: res.ResponseWeight,
		Duration:      elapsed,
		HistoryID:     id,
	})
	e.metrics.Observe(string(res.Status), elapsed, requestWeight, res.ResponseWeight)

	e.log.WithFields(logrus.Fields{
		"method":   sub.Method,
		"url":      target,
		"status":   res.Status,
		"code":     res.Response.Status,
		"duration": elapsed,
		"history":  id,
	}).Debug("request sent")
	return res, nil
}

// routePath uses a codec without a notifier: an unencodable URL is reported
// once, by the Base64URL encoding at record creation.
func (e *Executor) routePath(req restmodel.Request, locale string) string {
	path, err := codec.New(nil).BuildPath(codec.Route{Locale: locale, Request: req})
	if err != nil {
		return req.Method + " " + req.URL
	}
	return path
}

func (e *Executor) acquire(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[key]; busy {
		return false
	}
	e.inFlight[key] = struct{}{}
	return true
}

func (e *Executor) release(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, key)
}

// buildTarget parses the substituted URL and echoes every complete header
// pair into its query string. The headers are also sent as real headers.
func buildTarget(raw string, headers []restmodel.Header) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errdef.Wrap(errdef.CodeInvalidURL, err, "parse url %q", raw)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errdef.New(errdef.CodeInvalidURL, "url %q must be absolute", raw)
	}
	var extra []string
	for _, h := range headers {
		if h.Key == "" || h.Value == "" {
			continue
		}
		extra = append(extra, url.QueryEscape(h.Key)+"="+url.QueryEscape(h.Value))
	}
	if len(extra) > 0 {
		joined := strings.Join(extra, "&")
		if u.RawQuery == "" {
			u.RawQuery = joined
		} else {
			u.RawQuery += "&" + joined
		}
	}
	return u.String(), nil
}
