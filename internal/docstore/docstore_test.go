package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQL(context.Background(), DialectSQLite, filepath.Join(t.TempDir(), "docs.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"file":   NewFile(filepath.Join(t.TempDir(), "store")),
		"sqlite": sqlite,
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			const coll = "users/u1/history"

			doc, ok, err := store.Get(ctx, coll, "missing")
			if err != nil || ok || doc != nil {
				t.Fatalf("expected plain not-found, got %v %v %v", doc, ok, err)
			}
			if err := store.Update(ctx, coll, "missing", Document{"a": 1}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			if err := store.Create(ctx, coll, "b", Document{"status": "in process", "code": 0}); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := store.Create(ctx, coll, "b", Document{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			if err := store.Create(ctx, coll, "a", Document{"status": "ok"}); err != nil {
				t.Fatalf("create second: %v", err)
			}
			if err := store.Update(ctx, coll, "b", Document{"status": "error", "errorDetails": "boom"}); err != nil {
				t.Fatalf("update: %v", err)
			}

			got, ok, err := store.Get(ctx, coll, "b")
			if err != nil || !ok {
				t.Fatalf("get: %v %v", ok, err)
			}
			if got["status"] != "error" || got["errorDetails"] != "boom" {
				t.Fatalf("update not merged: %#v", got)
			}
			if _, hasCode := got["code"]; !hasCode {
				t.Fatalf("update dropped untouched field: %#v", got)
			}

			list, err := store.List(ctx, coll)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 2 || list[0]["status"] != "ok" {
				t.Fatalf("unexpected list %#v", list)
			}
			if other, _ := store.List(ctx, "other"); len(other) != 0 {
				t.Fatalf("collections leaked: %#v", other)
			}
			if err := store.Create(ctx, "", "x", Document{}); err == nil {
				t.Fatalf("expected error for empty collection")
			}
		})
	}
}

func TestMemoryCopiesDocuments(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	in := Document{"k": "v"}
	if err := m.Create(ctx, "c", "1", in); err != nil {
		t.Fatalf("create: %v", err)
	}
	in["k"] = "changed"
	out, _, _ := m.Get(ctx, "c", "1")
	out["k"] = "mutated"
	again, _, _ := m.Get(ctx, "c", "1")
	if again["k"] != "v" {
		t.Fatalf("store shares maps with callers: %#v", again)
	}
}

func TestBackendSet(t *testing.T) {
	var b Backend
	if err := b.Set("sqlite:/tmp/x.db"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if b.Implementation != "sqlite" || b.Address != "/tmp/x.db" || b.String() != "sqlite:/tmp/x.db" {
		t.Fatalf("unexpected backend %+v", b)
	}
	if err := b.Set("postgres:postgres://u:p@h/db"); err != nil || b.Address != "postgres://u:p@h/db" {
		t.Fatalf("address with colons must survive: %+v %v", b, err)
	}
	if err := b.Set("mongo:x"); err == nil {
		t.Fatalf("expected unknown backend error")
	}
	if err := b.Set(""); err == nil {
		t.Fatalf("expected empty backend error")
	}
	mem := Backend{Implementation: "memory"}
	if s, err := mem.Open(context.Background()); err != nil || s == nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, err := (&Backend{Implementation: "file"}).Open(context.Background()); err == nil {
		t.Fatalf("expected error for file backend without dir")
	}
}

func TestBackendAsFlag(t *testing.T) {
	var b Backend
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Var(&b, "store", "")
	if err := fs.Parse([]string{"--store", "file:/var/lib/rs"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if b.Implementation != "file" || b.Address != "/var/lib/rs" {
		t.Fatalf("unexpected backend %+v", b)
	}
	if err := fs.Parse([]string{"--store", "redis:x"}); err == nil {
		t.Fatalf("expected parse error for unknown backend")
	}
}

func TestRebind(t *testing.T) {
	pg := &SQL{dialect: DialectPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Fatalf("unexpected rebind %q", got)
	}
	lite := &SQL{dialect: DialectSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite must keep ? placeholders, got %q", got)
	}
}
