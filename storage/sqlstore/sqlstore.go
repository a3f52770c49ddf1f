// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlstore implements storage.Store on top of database/sql,
// supporting sqlite, postgres and mysql behind one dialect-aware code
// path, adapted from v2/session/store.go's SQLSessionService and
// v2/task/store.go's schema-version bootstrap.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/werrors"
	"github.com/agentworld/agentworld/world"
)

const schemaVersion = 1

const component = "sqlstore"

// Store implements storage.Store against a SQL database.
type Store struct {
	db      *sql.DB
	dialect string
}

var _ storage.Store = (*Store)(nil)

// Open validates the dialect, opens the connection and bootstraps the
// schema in one transaction (mirrors v2/task/store.go's
// needsMigration/migrate/setSchemaVersion sequence).
func Open(dialect, dsn string) (*Store, error) {
	switch dialect {
	case "sqlite", "sqlite3":
		dialect = "sqlite3"
	case "postgres", "mysql":
	default:
		return nil, werrors.New(werrors.Validation, component, "Open", fmt.Sprintf("unsupported dialect: %s", dialect), nil)
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, werrors.New(werrors.Storage, component, "Open", "open connection", err)
	}
	if err := db.Ping(); err != nil {
		return nil, werrors.New(werrors.Storage, component, "Open", "ping connection", err)
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.bootstrap(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) isPostgres() bool { return s.dialect == "postgres" }

// rebind rewrites `?` placeholders to `$1, $2, ...` for postgres;
// sqlite and mysql both accept `?` natively.
func (s *Store) rebind(query string) string {
	if !s.isPostgres() {
		return query
	}
	var b strings.Builder
	n := 1
	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func notFound(op, msg string) error {
	return werrors.New(werrors.NotFound, component, op, msg, nil)
}

func storageErr(op, msg string, err error) error {
	return werrors.New(werrors.Storage, component, op, msg, err)
}

func marshal(op string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", storageErr(op, "marshal", err)
	}
	return string(b), nil
}

func unmarshal(op, raw string, v any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return storageErr(op, "unmarshal", err)
	}
	return nil
}

func newArchiveID() string { return uuid.NewString() }

func werrorsIsNotFound(err error) bool {
	return werrors.OfKind(err, werrors.NotFound)
}

func werrorsValidation(op, msg string) error {
	return werrors.New(werrors.Validation, component, op, msg, nil)
}

func marshalIndent(op string, v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, storageErr(op, "marshal indent", err)
	}
	return b, nil
}
