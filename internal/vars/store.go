// Package vars manages named environments of variables and resolves
// {{name}} placeholders against the selected one.
package vars

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/reststudio/internal/errdef"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

// Variable is one name/value pair of an environment, in stored order.
type Variable struct {
	Key   string `json:"key"   yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Store caches the whole variables document in memory. With auto-flush on
// (the default) every mutation rewrites the full document through the
// repository; otherwise callers flush explicitly. Writes are
// last-write-wins, nothing coordinates separate processes.
type Store struct {
	repo      Repository
	log       logrus.FieldLogger
	autoFlush bool

	mu    sync.RWMutex
	doc   *document
	dirty bool
}

type Option func(*Store)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAutoFlush toggles writing after every mutation.
func WithAutoFlush(on bool) Option {
	return func(s *Store) { s.autoFlush = on }
}

func NewStore(repo Repository, opts ...Option) *Store {
	if repo == nil {
		repo = NewMemoryRepository(nil)
	}
	s := &Store{
		repo:      repo,
		log:       logrus.StandardLogger(),
		autoFlush: true,
		doc:       newDocument(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the cache with the repository content. A malformed
// document leaves an empty store and is only logged; repository I/O
// failures are returned.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}

	doc := newDocument()
	if len(data) > 0 {
		if parseErr := json.Unmarshal(data, doc); parseErr != nil {
			s.log.WithError(parseErr).Warn("variables document is malformed; starting empty")
			doc = newDocument()
		}
	}

	s.mu.Lock()
	s.doc = doc
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// Flush serializes the whole document and saves it.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	data, err := json.Marshal(s.doc)
	s.mu.Unlock()
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "encode variables")
	}
	if err := s.repo.Save(ctx, data); err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "save variables")
	}
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// mutate applies fn under the lock and flushes when fn reports a change.
func (s *Store) mutate(fn func(d *document) bool) error {
	s.mu.Lock()
	changed := fn(s.doc)
	if changed {
		s.dirty = true
	}
	s.mu.Unlock()
	if !changed || !s.autoFlush {
		return nil
	}
	return s.Flush(context.Background())
}

// AddEnv creates name or overwrites its variables.
func (s *Store) AddEnv(name string, values map[string]string) error {
	return s.AddEnvOrdered(name, mapToVariables(values))
}

func (s *Store) AddEnvOrdered(name string, values []Variable) error {
	return s.mutate(func(d *document) bool {
		vars := newOrderedVars()
		for _, v := range values {
			setVar(vars, v.Key, v.Value)
		}
		d.put(name, vars)
		return true
	})
}

func (s *Store) RemoveEnv(name string) error {
	return s.mutate(func(d *document) bool {
		return d.remove(name)
	})
}

// RenameEnv moves the variables of oldName under newName. The renamed
// environment goes to the end of the order; an existing newName is replaced.
func (s *Store) RenameEnv(oldName, newName string) error {
	return s.mutate(func(d *document) bool {
		vars, ok := d.env(oldName)
		if !ok || oldName == newName {
			return false
		}
		d.remove(oldName)
		d.remove(newName)
		d.put(newName, vars)
		return true
	})
}

func (s *Store) ClearEnv(name string) error {
	return s.mutate(func(d *document) bool {
		if _, ok := d.env(name); !ok {
			return false
		}
		d.put(name, newOrderedVars())
		return true
	})
}

func (s *Store) SetVariable(env, key, value string) error {
	return s.mutate(func(d *document) bool {
		vars, ok := d.env(env)
		if !ok {
			vars = newOrderedVars()
			d.put(env, vars)
		}
		setVar(vars, key, value)
		return true
	})
}

func (s *Store) RemoveVariable(env, key string) error {
	return s.mutate(func(d *document) bool {
		vars, ok := d.env(env)
		if !ok {
			return false
		}
		_, removed := vars.Delete(key)
		return removed
	})
}

func (s *Store) GetEnv() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.names()
}

// GetEnvVariables returns a copy of the variables of env, or an empty map.
func (s *Store) GetEnvVariables(env string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vars, ok := s.doc.env(env)
	if !ok {
		return map[string]string{}
	}
	return varsAsMap(vars)
}

// Variables lists env in stored order.
func (s *Store) Variables(env string) []Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vars, ok := s.doc.env(env)
	if !ok {
		return nil
	}
	out := make([]Variable, 0, vars.Len())
	for k, v := range vars.FromOldest() {
		out = append(out, Variable{Key: k, Value: string(v)})
	}
	return out
}

func (s *Store) EnvironmentExists(env string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.doc.env(env)
	return ok
}

func (s *Store) VariableExists(env, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vars, ok := s.doc.env(env)
	if !ok {
		return false
	}
	_, ok = getVar(vars, key)
	return ok
}

func (s *Store) VariableValue(env, key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vars, ok := s.doc.env(env)
	if !ok {
		return ""
	}
	v, _ := getVar(vars, key)
	return v
}

func (s *Store) Substitute(text, env string) string {
	return Substitute(text, s.GetEnvVariables(env))
}

func (s *Store) SubstituteRequest(req restmodel.Request, env string) restmodel.Request {
	return SubstituteRequest(req, s.GetEnvVariables(env))
}

// MarshalJSON returns the document exactly as it would be persisted.
func (s *Store) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	doc := s.doc.clone()
	s.mu.RUnlock()
	return json.Marshal(doc)
}

func mapToVariables(values map[string]string) []Variable {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Variable, 0, len(keys))
	for _, k := range keys {
		out = append(out, Variable{Key: k, Value: values[k]})
	}
	return out
}
