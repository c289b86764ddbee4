// Package badger provides a SyncLedger backed by an embedded BadgerDB.
//
// Each document is one key "doc/<doc_id>" holding the JSON-encoded
// DocState. Badger iterates keys in byte order, so List is ordered by
// doc id without sorting.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// Ensure Ledger implements the interface.
var _ driven.SyncLedger = (*Ledger)(nil)

// DirName is the ledger directory inside the data directory.
const DirName = "ledger"

var docPrefix = []byte("doc/")

// Ledger stores document states in BadgerDB.
type Ledger struct {
	db *badger.DB
}

// Open opens (or creates) a ledger in dir. An empty dir opens an
// in-memory database.
func Open(dir string) (*Ledger, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create ledger directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Get returns the ledger entry for docID.
func (l *Ledger) Get(ctx context.Context, docID string) (*domain.DocState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var state domain.DocState
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(docID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading doc state %s: %w", docID, err)
	}
	return &state, nil
}

// Put creates or replaces the ledger entry for state.DocID.
func (l *Ledger) Put(ctx context.Context, state domain.DocState) error {
	if state.DocID == "" {
		return fmt.Errorf("%w: doc id is required", domain.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	val, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding doc state: %w", err)
	}
	if err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(state.DocID), val)
	}); err != nil {
		return fmt.Errorf("saving doc state %s: %w", state.DocID, err)
	}
	return nil
}

// List returns all entries ordered by doc id.
func (l *Ledger) List(ctx context.Context) ([]domain.DocState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var states []domain.DocState
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = docPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var state domain.DocState
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &state)
			}); err != nil {
				return err
			}
			states = append(states, state)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing doc states: %w", err)
	}
	return states, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func key(docID string) []byte {
	return append(append([]byte(nil), docPrefix...), docID...)
}

// badgerLogger routes Badger's internal logging to the application logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debug("badger: "+format, args...)
}
