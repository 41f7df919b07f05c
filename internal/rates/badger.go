package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"remitscout-backend/internal/components/telemetry"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BadgerStore is a DurableStore on an embedded badger database, expiry is left to badger's TTL.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadgerStore opens (or creates) a badger database at path, an empty path keeps
// everything in memory.
func OpenBadgerStore(path string, tel telemetry.API) (BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(badgerLogger{tel: telemetry.NewScopedAPI("badger", tel)})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return BadgerStore{}, fmt.Errorf("open badger at '%s': %w", path, err)
	}
	return NewBadgerStore(db), nil
}

func NewBadgerStore(db *badger.DB) BadgerStore {
	return BadgerStore{db: db, ttl: DurableTTL}
}

func (s BadgerStore) Get(ctx context.Context, key string) (Record, error) {
	ctx, span := tracer.Start(ctx, "badger:get")
	defer span.End()
	span.SetAttributes(attribute.String("cache_key", key))

	tx := s.db.NewTransaction(false)
	defer tx.Discard()

	item, err := tx.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read item from badger")
		return Record{}, err
	}
	serialized, err := item.ValueCopy(nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy cached item")
		return Record{}, err
	}

	var record Record
	err = json.Unmarshal(serialized, &record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to deserialize cached item")
		return Record{}, err
	}
	return record, nil
}

func (s BadgerStore) Put(ctx context.Context, record Record) error {
	ctx, span := tracer.Start(ctx, "badger:put")
	defer span.End()

	key := record.Key()
	span.SetAttributes(attribute.String("cache_key", key))

	serialized, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize record")
		return err
	}

	err = s.db.Update(func(tx *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), serialized).WithTTL(s.ttl)
		return tx.SetEntry(entry)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to set badger item")
		return err
	}
	return nil
}

func (s BadgerStore) Close() error {
	return s.db.Close()
}

type badgerLogger struct {
	tel telemetry.API
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.tel.ReportBroken("db", fmt.Errorf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.tel.ReportWarning("db", fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.tel.ReportDebug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.tel.ReportDebug(fmt.Sprintf(format, args...))
}
