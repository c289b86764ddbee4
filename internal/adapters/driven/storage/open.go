// Package storage wires the persistent stores selected by configuration.
package storage

import (
	"errors"
	"path/filepath"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/badger"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/errs"
)

// Stores groups the ledger and audit stores.
type Stores struct {
	Ledger driven.SyncLedger
	Audit  driven.AuditStore

	closers []func() error
}

// Close releases every underlying database.
func (s *Stores) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, s.closers[i]())
	}
	s.closers = nil
	return err
}

// Open opens the audit store and the ledger backend selected by cfg.
// The audit trail always lives in SQLite.
func Open(cfg domain.Config) (*Stores, error) {
	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIngestionLedgerFailure, "opening metadata database")
	}
	stores := &Stores{
		Audit:   store.AuditStore(),
		closers: []func() error{store.Close},
	}

	switch cfg.Ledger.Backend {
	case "", domain.LedgerBackendSQLite:
		stores.Ledger = store.SyncLedger()
	case domain.LedgerBackendBadger:
		ledger, err := badger.Open(filepath.Join(cfg.DataDir, badger.DirName))
		if err != nil {
			_ = stores.Close()
			return nil, errs.Wrap(err, errs.CodeIngestionLedgerFailure, "opening badger ledger")
		}
		stores.Ledger = ledger
		stores.closers = append(stores.closers, ledger.Close)
	default:
		_ = stores.Close()
		return nil, errs.Errorf(errs.CodeConfigurationValueInvalid, "unknown ledger backend %q", cfg.Ledger.Backend)
	}
	return stores, nil
}
