// Package sqlite implements the gateway contract on an embedded SQLite
// database, standing in for a hosted backend during local use and tests.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS learning_types (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL CHECK (name <> ''),
	description TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS study_records (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	title            TEXT NOT NULL CHECK (title <> ''),
	description      TEXT NOT NULL DEFAULT '',
	link             TEXT NOT NULL DEFAULT '',
	learning_type_id INTEGER REFERENCES learning_types(id) ON DELETE SET NULL,
	review1_time     TEXT,
	review2_time     TEXT,
	review3_time     TEXT,
	review4_time     TEXT,
	review5_time     TEXT,
	review_status    TEXT,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS study_plans (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	title            TEXT NOT NULL CHECK (title <> ''),
	description      TEXT NOT NULL DEFAULT '',
	start_time       TEXT NOT NULL,
	end_time         TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'in_progress', 'completed')),
	priority         TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('high', 'medium', 'low')),
	learning_type_id INTEGER REFERENCES learning_types(id) ON DELETE SET NULL,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS issues (
	issue_id            INTEGER PRIMARY KEY AUTOINCREMENT,
	title               TEXT NOT NULL CHECK (title <> ''),
	issue_type          TEXT NOT NULL DEFAULT '',
	description         TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT '待处理' CHECK (status IN ('待处理', '处理中', '已解决')),
	priority            TEXT NOT NULL DEFAULT '中' CHECK (priority IN ('高', '中', '低')),
	solution            TEXT,
	cause               TEXT,
	preventive_measures TEXT,
	resolution_time     TEXT,
	created_at          TEXT NOT NULL,
	updated_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_basic (
	ts_code      TEXT PRIMARY KEY,
	symbol       TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL DEFAULT '',
	area         TEXT NOT NULL DEFAULT '',
	industry     TEXT NOT NULL DEFAULT '',
	fullname     TEXT NOT NULL DEFAULT '',
	enname       TEXT NOT NULL DEFAULT '',
	cnspell      TEXT NOT NULL DEFAULT '',
	market       TEXT NOT NULL DEFAULT '',
	exchange     TEXT NOT NULL DEFAULT '',
	curr_type    TEXT NOT NULL DEFAULT '',
	list_status  TEXT NOT NULL DEFAULT '',
	list_date    TEXT NOT NULL DEFAULT '',
	delist_date  TEXT NOT NULL DEFAULT '',
	is_hs        TEXT NOT NULL DEFAULT '',
	act_name     TEXT NOT NULL DEFAULT '',
	act_ent_type TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	revoked    INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_study_records_type ON study_records(learning_type_id);
CREATE INDEX IF NOT EXISTS idx_study_plans_type ON study_plans(learning_type_id);
CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
`

// dataTables are the collections reachable through the generic data API.
// users and refresh_tokens are only touched by the auth methods.
var dataTables = []string{"learning_types", "study_records", "study_plans", "issues", "stock_basic"}

// timeLayout is fixed-width so that lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// DB is a gateway.Gateway backed by SQLite.
type DB struct {
	conn       *sql.DB
	columns    map[string]map[string]struct{}
	hub        *gateway.SessionHub
	logger     *slog.Logger
	now        func() time.Time
	sessionTTL time.Duration

	mu      sync.Mutex
	session *models.Session
}

var _ gateway.Gateway = (*DB)(nil)

// Option configures a DB.
type Option func(*DB)

// WithClock overrides the time source used for timestamps and token expiry.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// WithSessionTTL sets the access-token lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(db *DB) { db.sessionTTL = ttl }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) { db.logger = logger }
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	db := &DB{
		conn:       conn,
		columns:    make(map[string]map[string]struct{}, len(dataTables)),
		hub:        gateway.NewSessionHub(),
		logger:     slog.Default(),
		now:        time.Now,
		sessionTTL: time.Hour,
	}
	for _, opt := range opts {
		opt(db)
	}

	for _, table := range dataTables {
		cols, err := tableColumns(conn, table)
		if err != nil {
			conn.Close()
			return nil, err
		}
		db.columns[table] = cols
	}
	return db, nil
}

// Close stops session subscriptions and closes the database.
func (db *DB) Close() error {
	db.hub.Close()
	return db.conn.Close()
}

func tableColumns(conn *sql.DB, table string) (map[string]struct{}, error) {
	rows, err := conn.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

func (db *DB) timestamp() string {
	return db.now().UTC().Format(timeLayout)
}
