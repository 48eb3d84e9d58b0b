// Package postgres implements the tracker's repositories on PostgreSQL with
// lib/pq. One Store satisfies every repository interface; table names carry
// the configured prefix.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/email-tracker/internal/config"
)

// tables holds the quoted, prefixed table names.
type tables struct {
	batches    string
	sentEmails string
	opens      string
	links      string
	bounces    string
	complaints string
}

func newTables(prefix string) tables {
	name := func(n string) string {
		if prefix != "" {
			n = prefix + "_" + n
		}
		return pq.QuoteIdentifier(n)
	}
	return tables{
		batches:    name("batches"),
		sentEmails: name("sent_emails"),
		opens:      name("email_opens"),
		links:      name("email_links"),
		bounces:    name("email_bounces"),
		complaints: name("email_complaints"),
	}
}

// Store is the PostgreSQL repository.
type Store struct {
	db *sql.DB
	t  tables
}

// New creates a Store on an open database.
func New(db *sql.DB, tablePrefix string) *Store {
	return &Store{db: db, t: newTables(tablePrefix)}
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", c.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
