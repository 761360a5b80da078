// Package history persists one record per send with a two-phase write:
// Create before the network call, Finalize once after it.
package history

import (
	"context"
	"errors"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/reststudio/internal/docstore"
	"github.com/unkn0wn-root/reststudio/internal/errdef"
)

const DefaultCollection = "history"

// Reporter receives failures that are not returned to the user, such as a
// finalize that could not be written.
type Reporter interface {
	ReportError(ctx context.Context, op string, err error)
}

type Synchronizer struct {
	store      docstore.Store
	collection string
	clock      clock.Clock
	log        logrus.FieldLogger
	reporter   Reporter
	newID      func() string
}

type Option func(*Synchronizer)

// WithCollection scopes records, e.g. "users/<uid>/history".
func WithCollection(name string) Option {
	return func(s *Synchronizer) {
		if strings.TrimSpace(name) != "" {
			s.collection = name
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Synchronizer) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.log = l
		}
	}
}

func WithReporter(r Reporter) Option {
	return func(s *Synchronizer) { s.reporter = r }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Synchronizer) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func New(store docstore.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:      store,
		collection: DefaultCollection,
		clock:      clock.New(),
		log:        logrus.StandardLogger(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synchronizer) Collection() string { return s.collection }

// Create writes an "in process" record and returns its id. The caller must
// not start the network call when this fails.
func (s *Synchronizer) Create(ctx context.Context, in Initial) (string, error) {
	now := s.clock.Now().UTC()
	rec := Record{
		ID:            s.newID(),
		Method:        in.Method,
		Path:          in.Path,
		URLWithVars:   in.URLWithVars,
		Status:        StatusInProcess,
		RequestWeight: in.RequestWeight,
		Headers:       in.Headers,
		Body:          in.Body,
		Variables:     in.Variables,
		Base64URL:     in.Base64URL,
		RequestID:     in.RequestID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	doc, err := toDocument(rec)
	if err != nil {
		return "", err
	}
	if err := s.store.Create(ctx, s.collection, rec.ID, doc); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"collection": s.collection,
			"id":         rec.ID,
		}).Error("history create failed")
		return "", errdef.Wrap(errdef.CodeHistory, err, "create history record")
	}
	return rec.ID, nil
}

// Finalize writes the terminal fields exactly once. A failure is logged and
// handed to the Reporter before being returned; callers treat it as
// informational.
func (s *Synchronizer) Finalize(ctx context.Context, id string, t Terminal) error {
	if !t.Status.Terminal() {
		return errdef.New(errdef.CodeHistory, "finalize with non-terminal status %q", t.Status)
	}
	t.UpdatedAt = s.clock.Now().UTC()
	patch, err := toDocument(t)
	if err != nil {
		s.fail(ctx, id, err)
		return err
	}
	if err := s.store.Update(ctx, s.collection, id, patch); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			err = errdef.Wrap(errdef.CodeHistory, err, "finalize unknown record %s", id)
		} else {
			err = errdef.Wrap(errdef.CodeHistory, err, "finalize history record")
		}
		s.fail(ctx, id, err)
		return err
	}
	return nil
}

func (s *Synchronizer) fail(ctx context.Context, id string, err error) {
	s.log.WithError(err).WithFields(logrus.Fields{
		"collection": s.collection,
		"id":         id,
	}).Warn("history finalize failed; record left in process")
	if s.reporter != nil {
		s.reporter.ReportError(ctx, "history.finalize", err)
	}
}

func (s *Synchronizer) Get(ctx context.Context, id string) (Record, bool, error) {
	doc, ok, err := s.store.Get(ctx, s.collection, id)
	if err != nil {
		return Record{}, false, errdef.Wrap(errdef.CodeHistory, err, "read history record")
	}
	if !ok {
		return Record{}, false, nil
	}
	rec, err := fromDocument(doc)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// List returns every record, newest first.
func (s *Synchronizer) List(ctx context.Context) ([]Record, error) {
	docs, err := s.store.List(ctx, s.collection)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "list history")
	}
	out := make([]Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := fromDocument(doc)
		if err != nil {
			s.log.WithError(err).WithField("id", doc["id"]).Warn("skipping unreadable history record")
			continue
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}
