package transaction

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrTxnInvalidState = errors.New("transaction is in an invalid state for this operation")
	ErrTxnNotBound     = errors.New("transaction has no storage handle")
)

// TransactionState represents the in-memory state of a transaction.
type TransactionState int

const (
	TxnStateRunning   TransactionState = iota // Transaction is active, operations are being applied
	TxnStateCommitted                         // Commit succeeded; handles derived from it are invalid
	TxnStateAborted                           // Rolled back, explicitly or after a failed commit
)

func (s TransactionState) String() string {
	switch s {
	case TxnStateRunning:
		return "RUNNING"
	case TxnStateCommitted:
		return "COMMITTED"
	case TxnStateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("TransactionState(%d)", int(s))
	}
}

// TransactionOperation is one entry of a transaction's write set.
type TransactionOperation struct {
	Command string `json:"command"` // PUT or DELETE
	Key     []byte `json:"key"`
	Value   []byte `json:"value,omitempty"`
}

const (
	CommandPut    = "PUT"
	CommandDelete = "DELETE"
)

// Transaction is the isolation boundary for a sequence of tree operations.
// It is driven by a single goroutine; nothing here is synchronized.
type Transaction struct {
	ID        uint64
	State     TransactionState
	Operation []TransactionOperation

	tx *sql.Tx
}

// IsActive reports whether operations may still be issued against t.
func (t *Transaction) IsActive() bool {
	return t != nil && t.State == TxnStateRunning
}

// Tx returns the storage handle operations run inside.
func (t *Transaction) Tx() (*sql.Tx, error) {
	if t == nil {
		return nil, ErrTxnNotBound
	}
	if !t.IsActive() {
		return nil, fmt.Errorf("%w: txn %d is %s", ErrTxnInvalidState, t.ID, t.State)
	}
	if t.tx == nil {
		return nil, fmt.Errorf("%w: txn %d", ErrTxnNotBound, t.ID)
	}
	return t.tx, nil
}

// Record appends op to the write set. Key and value are copied.
func (t *Transaction) Record(op TransactionOperation) {
	op.Key = append([]byte(nil), op.Key...)
	if op.Value != nil {
		op.Value = append([]byte(nil), op.Value...)
	}
	t.Operation = append(t.Operation, op)
}

// WriteSet returns the operations recorded so far, oldest first.
func (t *Transaction) WriteSet() []TransactionOperation {
	return t.Operation
}
