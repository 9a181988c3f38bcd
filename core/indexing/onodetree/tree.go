// Package onodetree implements the onode Tree over a SQLite table whose
// primary key is the order-preserving encoding of the object identifier.
package onodetree

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/felixhuettner/ceph/core/onode"
	"github.com/felixhuettner/ceph/core/storage"
	"github.com/felixhuettner/ceph/core/transaction"
)

const (
	queryContains   = `SELECT 1 FROM ` + storage.OnodeTable + ` WHERE k = ?`
	queryFind       = `SELECT k, v FROM ` + storage.OnodeTable + ` WHERE k = ?`
	queryLowerBound = `SELECT k, v FROM ` + storage.OnodeTable + ` WHERE k >= ? ORDER BY k LIMIT 1`
	queryNext       = `SELECT k, v FROM ` + storage.OnodeTable + ` WHERE k > ? ORDER BY k LIMIT 1`
	execInsert      = `INSERT OR IGNORE INTO ` + storage.OnodeTable + ` (k, v) VALUES (?, ?)`
	execUpdate      = `UPDATE ` + storage.OnodeTable + ` SET v = ? WHERE k = ?`
	execDelete      = `DELETE FROM ` + storage.OnodeTable + ` WHERE k = ?`
)

// Tree is an onode.Tree stored in the database the transactions run against.
type Tree struct {
	logger *zap.Logger
}

var _ onode.Tree = (*Tree)(nil)

func New(logger *zap.Logger) *Tree {
	return &Tree{logger: logger.Named("onode_tree")}
}

// cursor is a snapshot of one row taken inside a transaction.
type cursor struct {
	tree  *Tree
	end   bool
	oid   onode.ObjectID
	key   []byte
	value []byte
}

var _ onode.Cursor = (*cursor)(nil)

func (c *cursor) IsEnd() bool         { return c.end }
func (c *cursor) Key() onode.ObjectID { return c.oid }

func (c *cursor) Value() []byte {
	return bytes.Clone(c.value)
}

func (c *cursor) Record(ctx context.Context, txn *transaction.Transaction, value []byte) error {
	if c.end {
		return fmt.Errorf("%w: record through end cursor", onode.ErrInvalidTransition)
	}
	if len(value) != len(c.value) {
		return fmt.Errorf("%w: record %d bytes into a %d byte value", onode.ErrValueSize, len(value), len(c.value))
	}
	tx, err := txn.Tx()
	if err != nil {
		return mapError(err)
	}
	res, err := tx.ExecContext(ctx, execUpdate, value, c.key)
	if err != nil {
		return mapError(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return mapError(err)
	} else if n != 1 {
		return fmt.Errorf("%w: %s", onode.ErrKeyVanished, c.oid)
	}
	txn.Record(transaction.TransactionOperation{Command: transaction.CommandPut, Key: c.key, Value: value})
	c.value = bytes.Clone(value)
	return nil
}

func (t *Tree) endCursor() *cursor {
	return &cursor{tree: t, end: true, oid: onode.MaxObjectID()}
}

// scanRow turns a single-row query into a cursor; no row means end.
func (t *Tree) scanRow(row *sql.Row) (*cursor, error) {
	var k, v []byte
	if err := row.Scan(&k, &v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t.endCursor(), nil
		}
		return nil, mapError(err)
	}
	oid, err := onode.DecodeKey(k)
	if err != nil {
		return nil, err
	}
	return &cursor{tree: t, oid: oid, key: k, value: v}, nil
}

func (t *Tree) Contains(ctx context.Context, txn *transaction.Transaction, oid onode.ObjectID) (bool, error) {
	tx, err := txn.Tx()
	if err != nil {
		return false, mapError(err)
	}
	var one int
	err = tx.QueryRowContext(ctx, queryContains, onode.EncodeKey(oid)).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, mapError(err)
	}
	return true, nil
}

func (t *Tree) Find(ctx context.Context, txn *transaction.Transaction, oid onode.ObjectID) (onode.Cursor, error) {
	tx, err := txn.Tx()
	if err != nil {
		return nil, mapError(err)
	}
	return t.scanRow(tx.QueryRowContext(ctx, queryFind, onode.EncodeKey(oid)))
}

func (t *Tree) Insert(ctx context.Context, txn *transaction.Transaction, oid onode.ObjectID, valueSize int) (onode.Cursor, bool, error) {
	tx, err := txn.Tx()
	if err != nil {
		return nil, false, mapError(err)
	}
	key := onode.EncodeKey(oid)
	res, err := tx.ExecContext(ctx, execInsert, key, make([]byte, valueSize))
	if err != nil {
		return nil, false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, mapError(err)
	}
	created := n == 1
	if created {
		t.logger.Debug("onode entry inserted", zap.Stringer("oid", oid), zap.Uint64("txn", txn.ID))
		txn.Record(transaction.TransactionOperation{Command: transaction.CommandPut, Key: key, Value: make([]byte, valueSize)})
	}

	cur, err := t.scanRow(tx.QueryRowContext(ctx, queryFind, key))
	if err != nil {
		return nil, false, err
	}
	if cur.end {
		return nil, false, fmt.Errorf("%w: %s missing right after insert", onode.ErrKeyVanished, oid)
	}
	if len(cur.value) != valueSize {
		return nil, false, fmt.Errorf("%w: %s holds %d bytes, insert asked for %d", onode.ErrValueSize, oid, len(cur.value), valueSize)
	}
	return cur, created, nil
}

func (t *Tree) Erase(ctx context.Context, txn *transaction.Transaction, cur onode.Cursor) error {
	c, ok := cur.(*cursor)
	if !ok || c.tree != t || c.end {
		return fmt.Errorf("%w: erase through a cursor this tree did not produce", onode.ErrInvalidTransition)
	}
	tx, err := txn.Tx()
	if err != nil {
		return mapError(err)
	}
	res, err := tx.ExecContext(ctx, execDelete, c.key)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %s", onode.ErrKeyVanished, c.oid)
	}
	txn.Record(transaction.TransactionOperation{Command: transaction.CommandDelete, Key: c.key})
	return nil
}

func (t *Tree) LowerBound(ctx context.Context, txn *transaction.Transaction, oid onode.ObjectID) (onode.Cursor, error) {
	tx, err := txn.Tx()
	if err != nil {
		return nil, mapError(err)
	}
	return t.scanRow(tx.QueryRowContext(ctx, queryLowerBound, onode.EncodeKey(oid)))
}

// Advance seeks strictly past the key cur holds.
func (t *Tree) Advance(ctx context.Context, txn *transaction.Transaction, cur onode.Cursor) (onode.Cursor, error) {
	c, ok := cur.(*cursor)
	if !ok || c.tree != t {
		return nil, fmt.Errorf("%w: advance a cursor this tree did not produce", onode.ErrInvalidTransition)
	}
	if c.end {
		return c, nil
	}
	tx, err := txn.Tx()
	if err != nil {
		return nil, mapError(err)
	}
	return t.scanRow(tx.QueryRowContext(ctx, queryNext, c.key))
}

// mapError folds driver and transaction errors into the onode error kinds.
func mapError(err error) error {
	var sqliteErr sqlite3.Error
	switch {
	case errors.Is(err, transaction.ErrTxnInvalidState), errors.Is(err, sql.ErrTxDone):
		return fmt.Errorf("%w: %v", onode.ErrTransactionClosed, err)
	case errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked):
		return fmt.Errorf("%w: %v", onode.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %v", onode.ErrIO, err)
	}
}
