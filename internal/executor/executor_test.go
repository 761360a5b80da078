package executor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/reststudio/internal/docstore"
	"github.com/unkn0wn-root/reststudio/internal/errdef"
	"github.com/unkn0wn-root/reststudio/internal/history"
	"github.com/unkn0wn-root/reststudio/internal/httpclient"
	"github.com/unkn0wn-root/reststudio/internal/metrics"
	"github.com/unkn0wn-root/reststudio/internal/notify"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
	"github.com/unkn0wn-root/reststudio/internal/vars"
)

type fakeCaller struct {
	mu     sync.Mutex
	calls  []call
	handle func(target string, opts httpclient.CallOptions) (*httpclient.Reply, error)
}

type call struct {
	target string
	opts   httpclient.CallOptions
}

func (f *fakeCaller) Call(_ context.Context, target string, opts httpclient.CallOptions) (*httpclient.Reply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{target: target, opts: opts})
	handle := f.handle
	f.mu.Unlock()
	if handle == nil {
		return &httpclient.Reply{Status: 200, StatusText: "OK", Headers: http.Header{}}, nil
	}
	return handle(target, opts)
}

func (f *fakeCaller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type harness struct {
	exec     *Executor
	caller   *fakeCaller
	store    *docstore.Memory
	history  *history.Synchronizer
	notices  *notify.Collector
	mock     *clock.Mock
	vars     *vars.Store
	reporter *reporter
}

type reporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *reporter) ReportError(_ context.Context, _ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newHarness(t *testing.T, store docstore.Store) *harness {
	t.Helper()
	mem := docstore.NewMemory()
	if store == nil {
		store = mem
	}
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	rep := &reporter{}
	hist := history.New(store,
		history.WithClock(mock),
		history.WithLogger(quietLogger()),
		history.WithReporter(rep),
	)
	vs := vars.NewStore(vars.NewMemoryRepository(nil), vars.WithLogger(quietLogger()))
	if err := vs.AddEnv("dev", map[string]string{
		"host":  "https://api.example.com",
		"token": "abc123",
	}); err != nil {
		t.Fatalf("seed vars: %v", err)
	}
	caller := &fakeCaller{}
	notices := &notify.Collector{}
	exec := New(Config{
		Variables: vs,
		History:   hist,
		Caller:    caller,
		Clock:     mock,
		Notifier:  notices,
		Logger:    quietLogger(),
	})
	return &harness{
		exec:     exec,
		caller:   caller,
		store:    mem,
		history:  hist,
		notices:  notices,
		mock:     mock,
		vars:     vs,
		reporter: rep,
	}
}

func (h *harness) records(t *testing.T) []history.Record {
	t.Helper()
	recs, err := h.history.List(context.Background())
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	return recs
}

func TestSendSubstitutesAndEchoesHeadersIntoQuery(t *testing.T) {
	h := newHarness(t, nil)
	h.caller.handle = func(string, httpclient.CallOptions) (*httpclient.Reply, error) {
		h.mock.Add(42 * time.Millisecond)
		hdr := http.Header{}
		hdr.Add("Content-Type", "application/json")
		hdr.Add("Vary", "Accept")
		hdr.Add("Vary", "Origin")
		return &httpclient.Reply{Status: 201, StatusText: "Created", Headers: hdr, Body: []byte(`{"ok":true}`)}, nil
	}

	res, err := h.exec.Send(context.Background(), restmodel.Request{
		Method: "post",
		URL:    "{{host}}/items?page=1",
		Body:   `{"token":"{{token}}"}`,
		Headers: []restmodel.Header{
			{Key: "Authorization", Value: "Bearer {{token}}"},
			{Key: "X-Empty", Value: ""},
		},
	}, SendOptions{Environment: "dev"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if h.caller.count() != 1 {
		t.Fatalf("expected one call, got %d", h.caller.count())
	}
	got := h.caller.calls[0]
	want := "https://api.example.com/items?page=1&Authorization=Bearer+abc123"
	if got.target != want {
		t.Fatalf("unexpected target\nwant %s\n got %s", want, got.target)
	}
	if got.opts.Method != "POST" || got.opts.Body != `{"token":"abc123"}` {
		t.Fatalf("unexpected call options %+v", got.opts)
	}
	if got.opts.Headers[0].Value != "Bearer abc123" {
		t.Fatalf("header value not substituted: %+v", got.opts.Headers)
	}

	if res.Status != history.StatusOK || res.Response.Status != 201 || res.Response.StatusText != "Created" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Response.Headers["Vary"] != "Accept, Origin" {
		t.Fatalf("expected flattened headers, got %v", res.Response.Headers)
	}
	if res.Duration != 42*time.Millisecond {
		t.Fatalf("expected 42ms duration, got %v", res.Duration)
	}
	if res.RequestWeight != len(`{"token":"abc123"}`) || res.ResponseWeight != len(`{"ok":true}`) {
		t.Fatalf("unexpected weights %d/%d", res.RequestWeight, res.ResponseWeight)
	}

	recs := h.records(t)
	if len(recs) != 1 {
		t.Fatalf("expected one history record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.ID != res.HistoryID || rec.Status != history.StatusOK || rec.Code != 201 || rec.Duration != 42 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.URLWithVars != want || rec.Variables["host"] != "https://api.example.com" {
		t.Fatalf("request context not recorded: %+v", rec)
	}
	if !strings.HasPrefix(rec.Path, "/en/restful/POST/") || rec.Base64URL == "" {
		t.Fatalf("route fields not recorded: path=%q base64=%q", rec.Path, rec.Base64URL)
	}
}

func TestSendGetNeverForwardsBody(t *testing.T) {
	h := newHarness(t, nil)
	for _, method := range []string{"GET", "get", "HEAD", ""} {
		res, err := h.exec.Send(context.Background(), restmodel.Request{
			Method: method,
			URL:    "https://api.example.com/data",
			Body:   "should not be sent",
		}, SendOptions{})
		if err != nil {
			t.Fatalf("send %q: %v", method, err)
		}
		if res.RequestWeight != 0 {
			t.Fatalf("%q: expected zero request weight, got %d", method, res.RequestWeight)
		}
	}
	for _, c := range h.caller.calls {
		if c.opts.Body != "" {
			t.Fatalf("%s forwarded a body: %q", c.opts.Method, c.opts.Body)
		}
	}
}

func TestSendRequestWeightIsUTF8Bytes(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.exec.Send(context.Background(), restmodel.Request{
		Method: "PUT",
		URL:    "https://api.example.com/data",
		Body:   "ü€",
	}, SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.RequestWeight != 5 {
		t.Fatalf("expected 5 bytes, got %d", res.RequestWeight)
	}
}

func TestSendNetworkFailureFinalizesErrorRecord(t *testing.T) {
	h := newHarness(t, nil)
	h.caller.handle = func(string, httpclient.CallOptions) (*httpclient.Reply, error) {
		h.mock.Add(15 * time.Millisecond)
		return nil, errdef.Wrap(errdef.CodeHTTP, errors.New("connection refused"), "perform request")
	}

	res, err := h.exec.Send(context.Background(), restmodel.Request{
		Method: "GET",
		URL:    "https://down.example.com",
	}, SendOptions{})
	if err != nil {
		t.Fatalf("network failure must not be returned as error: %v", err)
	}
	if res.Status != history.StatusError || res.Response.Status != 0 || res.Response.StatusText != "Network Error" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ErrorDetails != "Network Error: perform request: connection refused" {
		t.Fatalf("unexpected details %q", res.ErrorDetails)
	}

	recs := h.records(t)
	if len(recs) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Status != history.StatusError || rec.Code != 0 {
		t.Fatalf("expected error/0 record, got %s/%d", rec.Status, rec.Code)
	}
	if rec.UpdatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("expected updatedAt to differ from createdAt")
	}
	if rec.ErrorDetails != res.ErrorDetails {
		t.Fatalf("details not persisted: %q", rec.ErrorDetails)
	}
}

func TestSendHTTPErrorStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.caller.handle = func(string, httpclient.CallOptions) (*httpclient.Reply, error) {
		return &httpclient.Reply{Status: 404, Headers: http.Header{}, Body: []byte("missing")}, nil
	}
	res, err := h.exec.Send(context.Background(), restmodel.Request{URL: "https://api.example.com/x"}, SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Status != history.StatusError || res.Response.StatusText != "Not Found" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ErrorDetails != "HTTP 404: Not Found" {
		t.Fatalf("unexpected details %q", res.ErrorDetails)
	}
}

func TestStatusTextFallbacks(t *testing.T) {
	cases := []struct {
		code     int
		reported string
		want     string
	}{
		{200, "Fine", "Fine"},
		{226, "", "IM Used"},
		{503, "", "Service Unavailable"},
		{599, "", "Unknown Status"},
		{0, "", "Unknown Status"},
	}
	for _, tc := range cases {
		if got := StatusText(tc.code, tc.reported); got != tc.want {
			t.Fatalf("StatusText(%d, %q) = %q, want %q", tc.code, tc.reported, got, tc.want)
		}
	}
}

func TestSendInvalidURLCreatesNoRecord(t *testing.T) {
	h := newHarness(t, nil)
	for _, raw := range []string{"not a url", "/relative/path", "{{missing}}/x", "http://[::1"} {
		res, err := h.exec.Send(context.Background(), restmodel.Request{URL: raw}, SendOptions{Environment: "dev"})
		if err == nil || res != nil {
			t.Fatalf("%q: expected error, got %+v", raw, res)
		}
		if errdef.CodeOf(err) != errdef.CodeInvalidURL {
			t.Fatalf("%q: expected invalid url code, got %q", raw, errdef.CodeOf(err))
		}
	}
	if h.caller.count() != 0 {
		t.Fatalf("no call expected for invalid urls")
	}
	if len(h.records(t)) != 0 {
		t.Fatalf("no record expected for invalid urls")
	}
	if h.notices.Len() != 4 {
		t.Fatalf("expected one notice per invalid url, got %d", h.notices.Len())
	}
}

func TestSendPerCallNotifierSeesNotices(t *testing.T) {
	h := newHarness(t, nil)
	own := &notify.Collector{}
	_, err := h.exec.Send(context.Background(), restmodel.Request{URL: "nope"}, SendOptions{Notifier: own})
	if err == nil {
		t.Fatalf("expected invalid url error")
	}
	if own.Len() != 1 || h.notices.Len() != 1 {
		t.Fatalf("expected the notice on both notifiers, got %d and %d", own.Len(), h.notices.Len())
	}
	if got := own.Notices()[0]; got.Level != notify.LevelError || !strings.HasPrefix(got.Message, "Invalid URL: ") {
		t.Fatalf("unexpected notice %+v", got)
	}
}

type failingCreates struct{ docstore.Store }

func (failingCreates) Create(context.Context, string, string, docstore.Document) error {
	return errors.New("permission denied")
}

type failingUpdates struct{ docstore.Store }

func (failingUpdates) Update(context.Context, string, string, docstore.Document) error {
	return errors.New("deadline exceeded")
}

func TestSendCreateFailureSkipsNetwork(t *testing.T) {
	h := newHarness(t, failingCreates{docstore.NewMemory()})
	res, err := h.exec.Send(context.Background(), restmodel.Request{URL: "https://api.example.com"}, SendOptions{})
	if err == nil || res != nil {
		t.Fatalf("expected create failure, got %+v", res)
	}
	if h.caller.count() != 0 {
		t.Fatalf("network call made despite create failure")
	}
	if h.notices.Len() != 1 {
		t.Fatalf("expected a notice, got %d", h.notices.Len())
	}
}

func TestSendFinalizeFailureStillReturnsResponse(t *testing.T) {
	h := newHarness(t, failingUpdates{docstore.NewMemory()})
	h.caller.handle = func(string, httpclient.CallOptions) (*httpclient.Reply, error) {
		return &httpclient.Reply{Status: 200, StatusText: "OK", Body: []byte("hi")}, nil
	}
	res, err := h.exec.Send(context.Background(), restmodel.Request{URL: "https://api.example.com"}, SendOptions{})
	if err != nil {
		t.Fatalf("finalize failure must not fail the send: %v", err)
	}
	if res.Response.Body != "hi" || res.Status != history.StatusOK {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.HistoryErr == nil {
		t.Fatalf("expected HistoryErr to be set")
	}
	if len(h.reporter.errs) != 1 {
		t.Fatalf("expected finalize failure to be reported once, got %d", len(h.reporter.errs))
	}
}

func TestSendRejectsOverlappingSameRequest(t *testing.T) {
	h := newHarness(t, nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.caller.handle = func(target string, _ httpclient.CallOptions) (*httpclient.Reply, error) {
		if strings.Contains(target, "/slow") {
			once.Do(func() { close(entered) })
			<-release
		}
		return &httpclient.Reply{Status: 200}, nil
	}

	slow := restmodel.Request{URL: "https://api.example.com/slow"}
	errc := make(chan error, 1)
	go func() {
		_, err := h.exec.Send(context.Background(), slow, SendOptions{})
		errc <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first send never reached the network")
	}

	if _, err := h.exec.Send(context.Background(), slow, SendOptions{}); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("expected ErrSendInFlight, got %v", err)
	}
	if _, err := h.exec.Send(context.Background(), restmodel.Request{URL: "https://api.example.com/fast"}, SendOptions{}); err != nil {
		t.Fatalf("distinct request should run concurrently: %v", err)
	}

	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := h.exec.Send(context.Background(), slow, SendOptions{}); err != nil {
		t.Fatalf("send after completion: %v", err)
	}
	if n := len(h.records(t)); n != 3 {
		t.Fatalf("expected three records, got %d", n)
	}
}

func TestSendObservesMetrics(t *testing.T) {
	h := newHarness(t, nil)
	reg := prometheus.NewRegistry()
	sends := metrics.NewSends()
	if err := sends.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	h.exec.metrics = sends

	if _, err := h.exec.Send(context.Background(), restmodel.Request{URL: "https://api.example.com"}, SendOptions{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "reststudio_sends_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			if m.GetLabel()[0].GetValue() == "ok" && m.GetCounter().GetValue() == 1 {
				return
			}
		}
	}
	t.Fatalf("expected one ok send counted")
}

func TestSendFinalizesAfterCallerCancels(t *testing.T) {
	store, err := docstore.OpenSQL(context.Background(), docstore.DialectSQLite, filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	h := newHarness(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.caller.handle = func(string, httpclient.CallOptions) (*httpclient.Reply, error) {
		cancel()
		return nil, context.Canceled
	}

	res, err := h.exec.Send(ctx, restmodel.Request{URL: "https://api.example.com/slow"}, SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.HistoryErr != nil {
		t.Fatalf("finalize failed after cancel: %v", res.HistoryErr)
	}
	rec, ok, err := h.history.Get(context.Background(), res.HistoryID)
	if err != nil || !ok {
		t.Fatalf("get record: ok=%v err=%v", ok, err)
	}
	if rec.Status != history.StatusError {
		t.Fatalf("record left as %q", rec.Status)
	}
}

func TestSendStoresRequestID(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.exec.Send(context.Background(), restmodel.Request{URL: "https://api.example.com"}, SendOptions{RequestID: "r42"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	rec, ok, err := h.history.Get(context.Background(), res.HistoryID)
	if err != nil || !ok {
		t.Fatalf("get record: ok=%v err=%v", ok, err)
	}
	if rec.RequestID != "r42" {
		t.Fatalf("expected request id r42, got %q", rec.RequestID)
	}
}

func TestSendUnencodableURLWarnsOnce(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.exec.Send(context.Background(), restmodel.Request{URL: "https://api.example.com/\xff"}, SendOptions{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	notices := h.notices.Notices()
	if len(notices) != 1 || notices[0].Level != notify.LevelWarning {
		t.Fatalf("expected one warning, got %+v", notices)
	}
	rec, _, _ := h.history.Get(context.Background(), res.HistoryID)
	if rec.Base64URL != "" {
		t.Fatalf("expected empty base64Url, got %q", rec.Base64URL)
	}
}
