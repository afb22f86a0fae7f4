// Package ledger is the accounting engine: it computes the effect of cash
// and trade operations on an account's balance and lots.
//
// The engine performs no I/O. Callers read the current Book from a store,
// apply one operation, and persist the returned Outcome atomically. An
// operation that returns an error leaves the Book untouched.
//
// Lots are tracked individually. A buy merges into the lot holding the same
// symbol at the exact same cost basis, otherwise it opens a new lot. A sell
// may span several lots of the symbol and consumes them first-in, first-out.
// All amounts are rounded to cents when computed (see domain.Round2).
package ledger
