package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/duochat/internal/store"
)

const schema = `
CREATE TABLE messages (
	id        TEXT PRIMARY KEY NOT NULL,
	content   TEXT NOT NULL,
	is_sent   BOOLEAN NOT NULL,
	sender    TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	is_read   BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX idx_messages_timestamp ON messages(timestamp);
CREATE INDEX idx_messages_unread ON messages(sender, is_read);
`

// SQLiteStore implements store.Backend for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	log *zerolog.Logger
}

// New opens the SQLite database at dbPath and brings its schema to
// store.SchemaVersion.
func New(dbPath string, logger *zerolog.Logger) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, logger, nil)
}

// NewWithSetup opens the database, runs setup against it before the schema
// check, then migrates. Useful for tests that need to seed an older layout.
func NewWithSetup(dbPath string, logger *zerolog.Logger, setup func(*sql.DB) error) (*SQLiteStore, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps
	// ":memory:" databases alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	s := &SQLiteStore{db: db, log: logger}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// migrate recreates the messages table when user_version differs from
// store.SchemaVersion. Existing rows are discarded.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version == store.SchemaVersion {
		return nil
	}

	if version != 0 {
		s.log.Warn().
			Int("found", version).
			Int("expected", store.SchemaVersion).
			Msg("schema version mismatch, recreating message storage")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS messages"); err != nil {
		return fmt.Errorf("drop messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", store.SchemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert inserts msg or replaces the row with the same id.
func (s *SQLiteStore) Upsert(ctx context.Context, msg store.Message) error {
	if !msg.Sender.Valid() {
		return fmt.Errorf("upsert message %s: %w: %d", msg.ID, store.ErrUnknownPersona, int(msg.Sender))
	}

	query := `
		INSERT OR REPLACE INTO messages (id, content, is_sent, sender, timestamp, is_read)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.Content,
		msg.IsSent,
		msg.Sender.String(),
		msg.Timestamp.UnixMilli(),
		msg.IsRead,
	)
	if err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

// QueryAll returns every message ordered by timestamp, then id.
func (s *SQLiteStore) QueryAll(ctx context.Context) ([]store.Message, error) {
	query := `
		SELECT id, content, is_sent, sender, timestamp, is_read
		FROM messages
		ORDER BY timestamp ASC, id ASC
	`
	return s.queryMessages(ctx, query)
}

// QueryUnread returns unread messages from sender ordered by timestamp, then id.
func (s *SQLiteStore) QueryUnread(ctx context.Context, sender store.Persona) ([]store.Message, error) {
	query := `
		SELECT id, content, is_sent, sender, timestamp, is_read
		FROM messages
		WHERE sender = ? AND is_read = 0
		ORDER BY timestamp ASC, id ASC
	`
	return s.queryMessages(ctx, query, sender.String())
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []store.Message{}
	for rows.Next() {
		var (
			msg    store.Message
			sender string
			millis int64
		)
		if err := rows.Scan(&msg.ID, &msg.Content, &msg.IsSent, &sender, &millis, &msg.IsRead); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if msg.Sender, err = store.ParsePersona(sender); err != nil {
			return nil, fmt.Errorf("scan message %s: %w", msg.ID, err)
		}
		msg.Timestamp = time.UnixMilli(millis)
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
