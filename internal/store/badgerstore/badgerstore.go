// Package badgerstore implements store.Backend on an embedded BadgerDB.
//
// Messages live under "msg:{id}" so an upsert is a single Set. Ordering is
// applied on read since keys carry no time component.
package badgerstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/duochat/internal/store"
)

const (
	messagePrefix = "msg:"
	versionKey    = "meta:schema_version"
)

// BadgerStore implements store.Backend for BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	log *zerolog.Logger
}

type record struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	IsSent    bool          `json:"is_sent"`
	Sender    store.Persona `json:"sender"`
	Timestamp int64         `json:"timestamp"`
	IsRead    bool          `json:"is_read"`
}

// New opens a BadgerDB at dir. An empty dir opens an in-memory database.
func New(dir string, logger *zerolog.Logger) (*BadgerStore, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &BadgerStore{db: db, log: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BadgerStore) migrate() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
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

	if err := s.db.DropPrefix([]byte(messagePrefix)); err != nil {
		return fmt.Errorf("drop messages: %w", err)
	}
	return s.setSchemaVersion(store.SchemaVersion)
}

func (s *BadgerStore) schemaVersion() (int, error) {
	var version int
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(versionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			version, err = strconv.Atoi(string(val))
			return err
		})
	})
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *BadgerStore) setSchemaVersion(version int) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(versionKey), []byte(strconv.Itoa(version)))
	})
	if err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Upsert stores msg under its id, replacing any previous value.
func (s *BadgerStore) Upsert(_ context.Context, msg store.Message) error {
	data, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(messagePrefix+msg.ID), data)
	})
	if err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

// QueryAll returns every message ordered by timestamp, then id.
func (s *BadgerStore) QueryAll(_ context.Context) ([]store.Message, error) {
	var records []record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(messagePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var r record
				if err := json.Unmarshal(val, &r); err != nil {
					return fmt.Errorf("decode message %s: %w", it.Item().Key(), err)
				}
				records = append(records, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}

	slices.SortStableFunc(records, func(a, b record) int {
		if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return lo.Map(records, func(r record, _ int) store.Message { return r.toMessage() }), nil
}

// QueryUnread returns unread messages from sender ordered by timestamp, then id.
func (s *BadgerStore) QueryUnread(ctx context.Context, sender store.Persona) ([]store.Message, error) {
	all, err := s.QueryAll(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(m store.Message, _ int) bool {
		return m.Sender == sender && !m.IsRead
	}), nil
}

func fromMessage(msg store.Message) record {
	return record{
		ID:        msg.ID,
		Content:   msg.Content,
		IsSent:    msg.IsSent,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp.UnixMilli(),
		IsRead:    msg.IsRead,
	}
}

func (r record) toMessage() store.Message {
	return store.Message{
		ID:        r.ID,
		Content:   r.Content,
		IsSent:    r.IsSent,
		Sender:    r.Sender,
		Timestamp: time.UnixMilli(r.Timestamp),
		IsRead:    r.IsRead,
	}
}
