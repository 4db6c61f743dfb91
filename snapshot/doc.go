// Package snapshot exports point-in-time copies of the ledger to disk.
//
// Exports are for inspection and archiving. Nothing in this module loads
// one back into a live ledger.
package snapshot
