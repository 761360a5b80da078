package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/reststudio/internal/docstore"
	"github.com/unkn0wn-root/reststudio/internal/errdef"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("rec-%02d", n)
	}
}

type recordingReporter struct {
	mu   sync.Mutex
	ops  []string
	errs []error
}

func (r *recordingReporter) ReportError(_ context.Context, op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	r.errs = append(r.errs, err)
}

type failingUpdates struct {
	docstore.Store
}

func (failingUpdates) Update(context.Context, string, string, docstore.Document) error {
	return errors.New("store offline")
}

type failingCreates struct {
	docstore.Store
}

func (failingCreates) Create(context.Context, string, string, docstore.Document) error {
	return errors.New("quota exceeded")
}

func TestCreateThenFinalize(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	hist := New(docstore.NewMemory(),
		WithClock(mock),
		WithLogger(quietLogger()),
		WithIDGenerator(sequentialIDs()),
	)

	id, err := hist.Create(ctx, Initial{
		Method:        "POST",
		Path:          "/en/restful/POST/abc",
		URLWithVars:   "https://api.example.com/items",
		Headers:       []restmodel.Header{{Key: "X-Env", Value: "dev"}},
		Body:          `{"a":1}`,
		Variables:     map[string]string{"host": "api.example.com"},
		Base64URL:     "abc",
		RequestWeight: 7,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "rec-01" {
		t.Fatalf("unexpected id %q", id)
	}

	rec, ok, err := hist.Get(ctx, id)
	if err != nil || !ok {
		t.Fatalf("get after create: %v %v", ok, err)
	}
	if rec.Status != StatusInProcess || rec.Code != 0 || rec.Duration != 0 {
		t.Fatalf("unexpected initial record %+v", rec)
	}
	if !rec.CreatedAt.Equal(rec.UpdatedAt) {
		t.Fatalf("expected createdAt == updatedAt on create, got %v %v", rec.CreatedAt, rec.UpdatedAt)
	}
	if len(rec.Headers) != 1 || rec.Headers[0].Key != "X-Env" || rec.Variables["host"] != "api.example.com" {
		t.Fatalf("request fields not persisted: %+v", rec)
	}

	mock.Add(250 * time.Millisecond)
	err = hist.Finalize(ctx, id, Terminal{
		Status:         StatusOK,
		Code:           201,
		Duration:       250,
		ResponseWeight: 2,
		Response: &restmodel.Response{
			Status:     201,
			StatusText: "Created",
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       "{}",
		},
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	rec, _, err = hist.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after finalize: %v", err)
	}
	if rec.Status != StatusOK || rec.Code != 201 || rec.Duration != 250 || rec.ResponseWeight != 2 {
		t.Fatalf("terminal fields not written: %+v", rec)
	}
	if rec.Response == nil || rec.Response.StatusText != "Created" || rec.Response.Headers["Content-Type"] != "application/json" {
		t.Fatalf("response not persisted: %+v", rec.Response)
	}
	if rec.UpdatedAt.Sub(rec.CreatedAt) != 250*time.Millisecond {
		t.Fatalf("expected updatedAt 250ms after createdAt, got %v", rec.UpdatedAt.Sub(rec.CreatedAt))
	}
	if rec.Body != `{"a":1}` || rec.RequestWeight != 7 {
		t.Fatalf("finalize clobbered request fields: %+v", rec)
	}
}

func TestCreateFailureIsReturned(t *testing.T) {
	hist := New(failingCreates{docstore.NewMemory()}, WithLogger(quietLogger()))
	id, err := hist.Create(context.Background(), Initial{Method: "GET"})
	if err == nil || id != "" {
		t.Fatalf("expected create error, got %q %v", id, err)
	}
	if errdef.CodeOf(err) != errdef.CodeHistory {
		t.Fatalf("expected history code, got %q", errdef.CodeOf(err))
	}
}

func TestFinalizeFailureIsReported(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemory()
	reporter := &recordingReporter{}
	hist := New(failingUpdates{mem}, WithLogger(quietLogger()), WithReporter(reporter))

	id, err := hist.Create(ctx, Initial{Method: "GET"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := hist.Finalize(ctx, id, Terminal{Status: StatusError}); err == nil {
		t.Fatalf("expected finalize error")
	}
	if len(reporter.ops) != 1 || reporter.ops[0] != "history.finalize" {
		t.Fatalf("expected one reported failure, got %v", reporter.ops)
	}

	rec, ok, _ := hist.Get(ctx, id)
	if !ok || rec.Status != StatusInProcess {
		t.Fatalf("record should stay in process after failed finalize, got %+v", rec)
	}
}

func TestFinalizeUnknownRecord(t *testing.T) {
	reporter := &recordingReporter{}
	hist := New(docstore.NewMemory(), WithLogger(quietLogger()), WithReporter(reporter))
	err := hist.Finalize(context.Background(), "missing", Terminal{Status: StatusOK})
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound in chain, got %v", err)
	}
	if len(reporter.errs) != 1 {
		t.Fatalf("expected failure to be reported")
	}
}

func TestFinalizeRejectsNonTerminalStatus(t *testing.T) {
	hist := New(docstore.NewMemory(), WithLogger(quietLogger()))
	if err := hist.Finalize(context.Background(), "x", Terminal{Status: StatusInProcess}); err == nil {
		t.Fatalf("expected error for non-terminal status")
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	store := docstore.NewFile(filepath.Join(t.TempDir(), "data"))
	hist := New(store,
		WithClock(mock),
		WithLogger(quietLogger()),
		WithIDGenerator(sequentialIDs()),
		WithCollection("users/u1/history"),
	)

	for i := 0; i < 3; i++ {
		if _, err := hist.Create(ctx, Initial{Method: "GET"}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		mock.Add(time.Second)
	}
	records, err := hist.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ID != "rec-03" || records[2].ID != "rec-01" {
		t.Fatalf("expected newest first, got %s %s %s", records[0].ID, records[1].ID, records[2].ID)
	}
}

func TestNewerFirstTieBreaksOnID(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []Record{
		{ID: "a", CreatedAt: at},
		{ID: "z"},
		{ID: "b", CreatedAt: at},
	}
	sortNewestFirst(records)
	if records[0].ID != "b" || records[1].ID != "a" || records[2].ID != "z" {
		t.Fatalf("unexpected order %v %v %v", records[0].ID, records[1].ID, records[2].ID)
	}
}
