package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	migrate "github.com/rubenv/sql-migrate"

	// registers "postgres"
	_ "github.com/lib/pq"
	// registers "sqlite"
	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/reststudio/internal/errdef"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const migrationTable = "reststudio_migrations"

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "0001_documents",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS documents (
					collection TEXT NOT NULL,
					id         TEXT NOT NULL,
					body       TEXT NOT NULL,
					PRIMARY KEY (collection, id)
				)`,
			},
			Down: []string{`DROP TABLE IF EXISTS documents`},
		},
	},
}

// SQL stores documents as JSON text in one table, on SQLite or PostgreSQL.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens the database and brings the schema up to date.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQL, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStorage, err, "open %s", dialect)
	}
	if dialect == DialectSQLite {
		// one writer at a time keeps SQLite from reporting SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errdef.Wrap(errdef.CodeStorage, err, "ping %s", dialect)
	}
	s := &SQL{db: db, dialect: dialect}
	if err := s.Upgrade(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) migrateDialect() string {
	if s.dialect == DialectSQLite {
		return "sqlite3"
	}
	return string(s.dialect)
}

// Upgrade applies pending schema migrations.
func (s *SQL) Upgrade() error {
	migrate.SetTable(migrationTable)
	if _, err := migrate.Exec(s.db, s.migrateDialect(), migrations, migrate.Up); err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "migrate documents schema")
	}
	return nil
}

// Drop runs every migration down, removing the tables.
func (s *SQL) Drop() error {
	migrate.SetTable(migrationTable)
	if _, err := migrate.Exec(s.db, s.migrateDialect(), migrations, migrate.Down); err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "drop documents schema")
	}
	return nil
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *SQL) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) Create(ctx context.Context, collection, id string, doc Document) error {
	if err := validate(collection, id); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "encode document")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "begin create")
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		s.rebind(`SELECT 1 FROM documents WHERE collection = ? AND id = ?`),
		collection, id).Scan(&exists)
	switch {
	case err == nil:
		return ErrExists
	case !errors.Is(err, sql.ErrNoRows):
		return errdef.Wrap(errdef.CodeStorage, err, "check document")
	}
	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`),
		collection, id, string(body)); err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "insert document")
	}
	if err := tx.Commit(); err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "commit create")
	}
	return nil
}

func (s *SQL) Update(ctx context.Context, collection, id string, patch Document) error {
	if err := validate(collection, id); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "begin update")
	}
	defer func() { _ = tx.Rollback() }()

	existing, ok, err := s.get(ctx, tx, collection, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	body, err := json.Marshal(merge(existing, patch))
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "encode document")
	}
	if _, err := tx.ExecContext(ctx,
		s.rebind(`UPDATE documents SET body = ? WHERE collection = ? AND id = ?`),
		string(body), collection, id); err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "update document")
	}
	if err := tx.Commit(); err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "commit update")
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	if err := validate(collection, id); err != nil {
		return nil, false, err
	}
	return s.get(ctx, s.db, collection, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQL) get(ctx context.Context, q queryer, collection, id string) (Document, bool, error) {
	var body string
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT body FROM documents WHERE collection = ? AND id = ?`),
		collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errdef.Wrap(errdef.CodeStorage, err, "read document")
	}
	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, false, errdef.Wrap(errdef.CodeStorage, err, "decode document %s", id)
	}
	return doc, true, nil
}

func (s *SQL) List(ctx context.Context, collection string) (_ []Document, err error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT body FROM documents WHERE collection = ? ORDER BY id`),
		collection)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStorage, err, "list documents")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = errdef.Wrap(errdef.CodeStorage, closeErr, "close rows")
		}
	}()

	var out []Document
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errdef.Wrap(errdef.CodeStorage, err, "scan document")
		}
		var doc Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, errdef.Wrap(errdef.CodeStorage, err, "decode document")
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodeStorage, err, "iterate documents")
	}
	return out, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}
