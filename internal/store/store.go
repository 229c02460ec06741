// Package store keeps decoded lattices and their results in BadgerDB so a
// batch run can be inspected or rescored later.
package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ieee0824/wordlattice/decoder"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("store: record not found")

const keyPrefix = "lattice:"

// Record is one stored decoding.
type Record struct {
	ID        uuid.UUID        `msgpack:"id"`
	Utterance string           `msgpack:"utterance"`
	CreatedAt time.Time        `msgpack:"created_at"`
	Result    *decoder.Result  `msgpack:"result"`
	Lattice   *decoder.Lattice `msgpack:"lattice"`
}

// Options configures the lattice store.
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless
	// InMemory is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool

	// Logger receives badger warnings and errors. Nil uses slog.Default.
	Logger *slog.Logger
}

// LatticeStore is a Badger-backed store of decodings.
type LatticeStore struct {
	db *badger.DB
}

// Open opens or creates the store.
func Open(opts Options) (*LatticeStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: Options.Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(slogLogger{logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return &LatticeStore{db: db}, nil
}

func key(id uuid.UUID) []byte {
	return []byte(keyPrefix + id.String())
}

// Put stores rec. A zero ID is replaced by a new random one, a zero
// CreatedAt by the current time. The stored id is returned.
func (s *LatticeStore) Put(_ context.Context, rec *Record) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	val, err := msgpack.Marshal(rec)
	if err != nil {
		return uuid.Nil, fmt.Errorf("store: encode %s: %w", rec.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(rec.ID), val)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return rec.ID, nil
}

// Get loads the record with the given id.
func (s *LatticeStore) Get(_ context.Context, id uuid.UUID) (*Record, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(val)
}

func decode(val []byte) (*Record, error) {
	rec := &Record{}
	if err := msgpack.Unmarshal(val, rec); err != nil {
		return nil, fmt.Errorf("store: decode: %w", err)
	}
	return rec, nil
}

// Delete removes the record with the given id. Deleting a missing record
// is not an error.
func (s *LatticeStore) Delete(_ context.Context, id uuid.UUID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// List yields every stored record in key order.
func (s *LatticeStore) List(_ context.Context) iter.Seq2[*Record, error] {
	prefix := []byte(keyPrefix)
	return func(yield func(*Record, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				val, err := it.Item().ValueCopy(nil)
				if err == nil {
					var rec *Record
					rec, err = decode(val)
					if err == nil {
						if !yield(rec, nil) {
							return nil
						}
						continue
					}
				}
				if !yield(nil, err) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// Close releases the database.
func (s *LatticeStore) Close() error {
	return s.db.Close()
}

// slogLogger routes badger warnings and errors to slog and drops the rest.
type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Errorf(f string, v ...interface{}) {
	s.l.Error(fmt.Sprintf(f, v...), "component", "badger")
}

func (s slogLogger) Warningf(f string, v ...interface{}) {
	s.l.Warn(fmt.Sprintf(f, v...), "component", "badger")
}

func (slogLogger) Infof(string, ...interface{})  {}
func (slogLogger) Debugf(string, ...interface{}) {}
