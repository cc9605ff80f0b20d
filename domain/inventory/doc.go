// Package inventory holds the in-memory state of the dispatch engine: an
// AVL tree of perishable lots keyed by expiry date, where every lot owns a
// FIFO queue of pending outbound orders.
//
// The package is deliberately free of I/O, logging and locking. Ownership
// is strict: a queue belongs to exactly one lot, an order to exactly one
// queue, and every order is allocated from (and returned to) one OrderPool.
package inventory
