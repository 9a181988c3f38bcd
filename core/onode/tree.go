package onode

import (
	"context"

	"github.com/felixhuettner/ceph/core/transaction"
)

// Tree is the ordered, transactional key-value store holding onode records.
// Every call runs inside txn and may block until the tree node it needs is
// available.
type Tree interface {
	Contains(ctx context.Context, txn *transaction.Transaction, oid ObjectID) (bool, error)
	// Find returns an end cursor when oid is absent.
	Find(ctx context.Context, txn *transaction.Transaction, oid ObjectID) (Cursor, error)
	// Insert finds oid or inserts it with a zeroed value of valueSize bytes.
	Insert(ctx context.Context, txn *transaction.Transaction, oid ObjectID, valueSize int) (cur Cursor, created bool, err error)
	Erase(ctx context.Context, txn *transaction.Transaction, cur Cursor) error
	// LowerBound positions a cursor at the first key >= oid.
	LowerBound(ctx context.Context, txn *transaction.Transaction, oid ObjectID) (Cursor, error)
	// Advance consumes cur and returns a cursor at the following key.
	Advance(ctx context.Context, txn *transaction.Transaction, cur Cursor) (Cursor, error)
}

// Cursor is a position in a Tree: a key/value pair or the end sentinel.
type Cursor interface {
	IsEnd() bool
	Key() ObjectID
	// Value returns a copy of the value region, sized as given at insertion.
	Value() []byte
	// Record writes value into txn's write set at this position.
	Record(ctx context.Context, txn *transaction.Transaction, value []byte) error
}

// ListResult is one page of a listing: keys in ascending order and the key
// the next page starts from.
type ListResult struct {
	Keys []ObjectID
	Next ObjectID
}
