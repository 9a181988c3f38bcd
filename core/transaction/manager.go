package transaction

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// Manager opens transactions against a database and concludes them.
// Conflict resolution across transactions is left to the database.
type Manager struct {
	db     *sql.DB
	nextID atomic.Uint64
	logger *zap.Logger
}

func NewManager(db *sql.DB, logger *zap.Logger) *Manager {
	return &Manager{
		db:     db,
		logger: logger.Named("txn_manager"),
	}
}

// Begin starts a new running transaction.
func (m *Manager) Begin(ctx context.Context) (*Transaction, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	txn := &Transaction{
		ID:    m.nextID.Add(1),
		State: TxnStateRunning,
		tx:    tx,
	}
	m.logger.Debug("transaction started", zap.Uint64("txn", txn.ID))
	return txn, nil
}

// Commit makes the transaction's writes durable. A failed commit leaves the
// transaction aborted.
func (m *Manager) Commit(txn *Transaction) error {
	if !txn.IsActive() {
		return fmt.Errorf("%w: cannot commit txn %d in state %s", ErrTxnInvalidState, txn.ID, txn.State)
	}
	if err := txn.tx.Commit(); err != nil {
		txn.State = TxnStateAborted
		m.logger.Warn("transaction commit failed", zap.Uint64("txn", txn.ID), zap.Error(err))
		return fmt.Errorf("commit txn %d: %w", txn.ID, err)
	}
	txn.State = TxnStateCommitted
	m.logger.Debug("transaction committed",
		zap.Uint64("txn", txn.ID),
		zap.Int("write_set", len(txn.Operation)))
	return nil
}

// Abort rolls the transaction back. Aborting an already aborted transaction
// is a no-op.
func (m *Manager) Abort(txn *Transaction) error {
	switch txn.State {
	case TxnStateAborted:
		return nil
	case TxnStateCommitted:
		return fmt.Errorf("%w: txn %d already committed", ErrTxnInvalidState, txn.ID)
	}
	txn.State = TxnStateAborted
	if err := txn.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("rollback txn %d: %w", txn.ID, err)
	}
	m.logger.Debug("transaction aborted", zap.Uint64("txn", txn.ID))
	return nil
}
