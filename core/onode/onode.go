package onode

import (
	"context"
	"fmt"

	"github.com/felixhuettner/ceph/core/transaction"
)

// State is the pending effect an Onode carries until write-back.
type State uint8

const (
	StateClean        State = iota // mirrors the tree's current value
	StateEdited                    // local layout diverges from the tree
	StateDeleteMarked              // erase on the next write-back
	StateRemoved                   // erased from the tree; terminal
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateEdited:
		return "edited"
	case StateDeleteMarked:
		return "delete-marked"
	case StateRemoved:
		return "removed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Onode is the in-memory proxy for one stored metadata record, valid for the
// transaction that produced it. The cursor it holds must not be shared with
// another Onode or a listing loop.
type Onode struct {
	state   State
	layout  Layout
	cursor  Cursor
	txn     *transaction.Transaction
	created bool
}

// New wraps the record under cur as a clean Onode owned by txn.
func New(txn *transaction.Transaction, cur Cursor) (*Onode, error) {
	o := &Onode{cursor: cur, txn: txn}
	if err := o.layout.UnmarshalBinary(cur.Value()); err != nil {
		return nil, fmt.Errorf("onode %s: %w", cur.Key(), err)
	}
	return o, nil
}

func (o *Onode) ID() ObjectID   { return o.cursor.Key() }
func (o *Onode) State() State   { return o.state }
func (o *Onode) Cursor() Cursor { return o.cursor }

// Created reports whether the call that returned o inserted the entry.
func (o *Onode) Created() bool { return o.created }

// MarkCreated flags o as freshly inserted and resets its record to the
// default layout, which leaves it Edited.
func (o *Onode) MarkCreated(txn *transaction.Transaction) error {
	l, err := o.MutableLayout(txn)
	if err != nil {
		return err
	}
	*l = Layout{}
	o.created = true
	return nil
}

// Layout returns a copy of the record as currently seen by o.
func (o *Onode) Layout() Layout { return o.layout }

// MutableLayout returns the record for in-place edits and moves a clean
// onode to Edited.
func (o *Onode) MutableLayout(txn *transaction.Transaction) (*Layout, error) {
	if err := o.checkOwner(txn); err != nil {
		return nil, err
	}
	switch o.state {
	case StateClean:
		o.state = StateEdited
	case StateEdited:
	case StateDeleteMarked, StateRemoved:
		return nil, fmt.Errorf("%w: %s is %s", ErrOnodeDeleted, o.ID(), o.state)
	}
	return &o.layout, nil
}

// MarkDelete schedules erasure for the next write-back. Marking twice, or
// marking a removed onode, changes nothing.
func (o *Onode) MarkDelete() {
	if o.state == StateRemoved {
		return
	}
	o.state = StateDeleteMarked
}

// Record writes the edited layout into txn's write set and returns o to Clean.
func (o *Onode) Record(ctx context.Context, txn *transaction.Transaction) error {
	if o.state != StateEdited {
		return fmt.Errorf("%w: record %s in state %s", ErrInvalidTransition, o.ID(), o.state)
	}
	if err := o.checkOwner(txn); err != nil {
		return err
	}
	value, err := o.layout.MarshalBinary()
	if err != nil {
		return err
	}
	if err := o.cursor.Record(ctx, txn, value); err != nil {
		return err
	}
	o.state = StateClean
	return nil
}

// Remove erases a delete-marked onode through tree.
func (o *Onode) Remove(ctx context.Context, txn *transaction.Transaction, tree Tree) error {
	if o.state != StateDeleteMarked {
		return fmt.Errorf("%w: remove %s in state %s", ErrInvalidTransition, o.ID(), o.state)
	}
	if err := o.checkOwner(txn); err != nil {
		return err
	}
	if err := tree.Erase(ctx, txn, o.cursor); err != nil {
		return err
	}
	o.state = StateRemoved
	return nil
}

func (o *Onode) checkOwner(txn *transaction.Transaction) error {
	if txn != o.txn {
		return fmt.Errorf("%w: %s", ErrForeignTransaction, o.ID())
	}
	if !txn.IsActive() {
		return fmt.Errorf("%w: %s", ErrTransactionClosed, o.ID())
	}
	return nil
}
