package onode

import "errors"

// --- Error Definitions ---

// Errors returned to callers of the onode manager.
var (
	ErrNotFound      = errors.New("onode not found")
	ErrValueTooLarge = errors.New("value too large")
	ErrInvalidKey    = errors.New("object id cannot be stored")
)

// Errors a Tree may return that the manager forwards unchanged.
var (
	ErrIO                = errors.New("i/o error")
	ErrConflict          = errors.New("transaction conflict, retry")
	ErrTransactionClosed = errors.New("transaction is no longer running")
)

// Errors that indicate corruption or a programming defect. The manager
// never forwards these; see OnodeManager.
var (
	ErrCorruptKey         = errors.New("onode key cannot be decoded, data corruption suspected")
	ErrValueSize          = errors.New("onode value size does not match the record layout")
	ErrKeyVanished        = errors.New("located onode entry vanished before erase")
	ErrOnodeDeleted       = errors.New("onode is marked for deletion")
	ErrInvalidTransition  = errors.New("invalid onode state transition")
	ErrForeignTransaction = errors.New("onode belongs to a different transaction")
)
