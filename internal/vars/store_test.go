package vars

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/reststudio/internal/docstore"
	"github.com/unkn0wn-root/reststudio/internal/restmodel"
)

func newTestStore(t *testing.T, initial string) (*Store, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository([]byte(initial))
	if initial == "" {
		repo = NewMemoryRepository(nil)
	}
	s := NewStore(repo)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s, repo
}

func TestSubstitute(t *testing.T) {
	t.Parallel()

	if got := Substitute("{{X}}", map[string]string{"X": "v"}); got != "v" {
		t.Fatalf("expected v, got %q", got)
	}
	if got := Substitute("{{Y}}", map[string]string{}); got != "{{Y}}" {
		t.Fatalf("expected verbatim token, got %q", got)
	}
	got := Substitute(
		"{{host}}/a/{{missing}}/{{ spaced }}/{{id}}{{id}}",
		map[string]string{"host": "https://x.io", "id": "7"},
	)
	if got != "https://x.io/a/{{missing}}/{{ spaced }}/77" {
		t.Fatalf("unexpected substitution %q", got)
	}
	if got := Substitute("{{a-b}}", map[string]string{"a-b": "no"}); got != "{{a-b}}" {
		t.Fatalf("non-word identifiers must not match, got %q", got)
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	got := Placeholders("{{a}} {{b}} {{a}} {{ c }}")
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected placeholders %v", got)
	}
}

func TestSubstituteRequestLeavesKeys(t *testing.T) {
	t.Parallel()

	req := restmodel.Request{
		URL:     "{{base}}/u",
		Body:    `{"t":"{{tok}}"}`,
		Headers: []restmodel.Header{{Key: "{{tok}}", Value: "Bearer {{tok}}"}},
	}
	out := SubstituteRequest(req, map[string]string{"base": "http://h", "tok": "abc"})
	if out.URL != "http://h/u" || out.Body != `{"t":"abc"}` {
		t.Fatalf("unexpected request %+v", out)
	}
	if out.Headers[0].Key != "{{tok}}" || out.Headers[0].Value != "Bearer abc" {
		t.Fatalf("unexpected header %+v", out.Headers[0])
	}
	if req.Headers[0].Value != "Bearer {{tok}}" {
		t.Fatalf("input request was mutated")
	}
}

func TestStoreCRUDPersistsWholeDocument(t *testing.T) {
	t.Parallel()

	s, repo := newTestStore(t, "")
	if err := s.AddEnv("dev", map[string]string{"b": "2", "a": "1"}); err != nil {
		t.Fatalf("add env: %v", err)
	}
	if err := s.SetVariable("prod", "host", "https://prod"); err != nil {
		t.Fatalf("set variable: %v", err)
	}
	if got := string(repo.Bytes()); got != `{"dev":{"a":"1","b":"2"},"prod":{"host":"https://prod"}}` {
		t.Fatalf("unexpected persisted document %s", got)
	}
	if !reflect.DeepEqual(s.GetEnv(), []string{"dev", "prod"}) {
		t.Fatalf("unexpected env order %v", s.GetEnv())
	}
	if !s.VariableExists("dev", "a") || s.VariableValue("dev", "a") != "1" {
		t.Fatalf("expected dev.a=1")
	}
	if s.VariableValue("dev", "zzz") != "" || s.VariableValue("nope", "a") != "" {
		t.Fatalf("missing values must be empty")
	}

	if err := s.RenameEnv("dev", "staging"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if !reflect.DeepEqual(s.GetEnv(), []string{"prod", "staging"}) {
		t.Fatalf("unexpected order after rename %v", s.GetEnv())
	}
	if s.EnvironmentExists("dev") || s.VariableValue("staging", "b") != "2" {
		t.Fatalf("rename did not move variables")
	}

	if err := s.ClearEnv("staging"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !s.EnvironmentExists("staging") || len(s.GetEnvVariables("staging")) != 0 {
		t.Fatalf("clear must keep an empty environment")
	}

	if err := s.RemoveVariable("prod", "host"); err != nil {
		t.Fatalf("remove variable: %v", err)
	}
	if s.VariableExists("prod", "host") {
		t.Fatalf("variable still present")
	}
	if err := s.RemoveEnv("prod"); err != nil {
		t.Fatalf("remove env: %v", err)
	}
	if got := string(repo.Bytes()); got != `{"staging":{}}` {
		t.Fatalf("unexpected persisted document %s", got)
	}
}

func TestStoreNoOps(t *testing.T) {
	t.Parallel()

	s, repo := newTestStore(t, `{"dev":{"K":"v"}}`)
	before := string(repo.Bytes())

	if err := s.RemoveVariable("no-such-env", "K"); err != nil {
		t.Fatalf("remove variable on unknown env: %v", err)
	}
	if err := s.RemoveEnv("ghost"); err != nil {
		t.Fatalf("remove unknown env: %v", err)
	}
	if err := s.RenameEnv("ghost", "other"); err != nil {
		t.Fatalf("rename unknown env: %v", err)
	}
	if err := s.ClearEnv("ghost"); err != nil {
		t.Fatalf("clear unknown env: %v", err)
	}
	if string(repo.Bytes()) != before || s.Dirty() {
		t.Fatalf("no-op calls changed the store")
	}
	if vars := s.GetEnvVariables("ghost"); vars == nil || len(vars) != 0 {
		t.Fatalf("expected empty map for unknown env, got %#v", vars)
	}
	if s.EnvironmentExists("ghost") {
		t.Fatalf("no-op created an environment")
	}
}

func TestLoadPreservesOrderAndScalars(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, `{"zeta":{"n":5,"flag":true,"nil":null},"alpha":{"k":"v"}}`)
	if !reflect.DeepEqual(s.GetEnv(), []string{"zeta", "alpha"}) {
		t.Fatalf("unexpected order %v", s.GetEnv())
	}
	want := []Variable{{"n", "5"}, {"flag", "true"}, {"nil", ""}}
	if got := s.Variables("zeta"); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected variables %v", got)
	}
}

func TestLoadMalformedDegradesToEmpty(t *testing.T) {
	t.Parallel()

	cases := []string{`{"dev":`, `[]`, `{"dev":"flat"}`, `{"dev":{"k":{"nested":1}}}`, `{} {}`}
	for _, raw := range cases {
		var buf bytes.Buffer
		logger := logrus.New()
		logger.SetOutput(&buf)

		s := NewStore(NewMemoryRepository([]byte(raw)), WithLogger(logger))
		if err := s.Load(context.Background()); err != nil {
			t.Fatalf("load %q returned error: %v", raw, err)
		}
		if len(s.GetEnv()) != 0 {
			t.Fatalf("expected empty store for %q", raw)
		}
		if !strings.Contains(buf.String(), "malformed") {
			t.Fatalf("expected parse failure to be logged for %q", raw)
		}
	}
}

type failingRepo struct{ MemoryRepository }

func (failingRepo) Save(context.Context, []byte) error { return errors.New("disk full") }

func TestExplicitFlush(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository(nil)
	s := NewStore(repo, WithAutoFlush(false))
	if err := s.SetVariable("dev", "a", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(repo.Bytes()) != 0 || !s.Dirty() {
		t.Fatalf("expected unflushed, dirty store")
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if string(repo.Bytes()) != `{"dev":{"a":"1"}}` || s.Dirty() {
		t.Fatalf("unexpected flush result %s", repo.Bytes())
	}

	bad := NewStore(&failingRepo{})
	if err := bad.SetVariable("dev", "a", "1"); err == nil {
		t.Fatalf("expected flush error to surface")
	}
	if bad.VariableValue("dev", "a") != "1" {
		t.Fatalf("in-memory value should survive a failed flush")
	}
}

func TestFileRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "variables.json")
	s := NewStore(FileRepository{Path: path})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	if err := s.SetVariable("dev", "token", "abc"); err != nil {
		t.Fatalf("set: %v", err)
	}

	reloaded := NewStore(FileRepository{Path: path})
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.VariableValue("dev", "token") != "abc" {
		t.Fatalf("value not persisted")
	}
}

func TestDocumentRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo := DocumentRepository{Store: docstore.NewMemory()}
	s := NewStore(repo)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.AddEnv("dev", map[string]string{"a": "1"}); err != nil {
		t.Fatalf("add env: %v", err)
	}
	if err := s.SetVariable("dev", "b", "2"); err != nil {
		t.Fatalf("set: %v", err)
	}

	reloaded := NewStore(repo)
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reflect.DeepEqual(reloaded.Variables("dev"), []Variable{{"a", "1"}, {"b", "2"}}) {
		t.Fatalf("unexpected variables %v", reloaded.Variables("dev"))
	}
}

func TestYAMLExportImport(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t, `{"dev":{"host":"http://localhost","token":"t"}}`)
	var buf bytes.Buffer
	if err := s.ExportEnv(&buf, "dev"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(buf.String(), "name: dev") {
		t.Fatalf("unexpected yaml %s", buf.String())
	}

	other, _ := newTestStore(t, "")
	name, err := other.ImportEnv(&buf, "copy")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if name != "copy" || !reflect.DeepEqual(other.Variables("copy"), s.Variables("dev")) {
		t.Fatalf("import mismatch: %q %v", name, other.Variables("copy"))
	}
	if err := s.ExportEnv(&buf, "missing"); err == nil {
		t.Fatalf("expected error exporting unknown env")
	}
}

func TestFlushKeepsLoadedOrder(t *testing.T) {
	t.Parallel()

	s, repo := newTestStore(t, `{"zeta":{"b":"2","a":"1"},"alpha":{},"mid":{"x":"<y>"}}`)
	if err := s.SetVariable("zeta", "c", "3"); err != nil {
		t.Fatalf("set variable: %v", err)
	}
	if err := s.SetVariable("zeta", "b", "20"); err != nil {
		t.Fatalf("overwrite variable: %v", err)
	}
	if err := s.RenameEnv("alpha", "omega"); err != nil {
		t.Fatalf("rename env: %v", err)
	}
	want := `{"zeta":{"b":"20","a":"1","c":"3"},"mid":{"x":"\u003cy\u003e"},"omega":{}}`
	if got := string(repo.Bytes()); got != want {
		t.Fatalf("unexpected persisted document %s", got)
	}

	reloaded, _ := newTestStore(t, want)
	if !reflect.DeepEqual(reloaded.GetEnv(), []string{"zeta", "mid", "omega"}) {
		t.Fatalf("unexpected env order %v", reloaded.GetEnv())
	}
	if got := reloaded.VariableValue("mid", "x"); got != "<y>" {
		t.Fatalf("unexpected value %q", got)
	}
}
