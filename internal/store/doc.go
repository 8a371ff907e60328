// Package store is the persistence boundary for the settings record.
//
// The record is opaque to this package: callers hand it a byte slice and
// get the same bytes back on the next load. It currently supports:
//   - "file": a single file with atomic tmp+rename writes
//   - "sqlite": a single-row blob table (optional build tag)
package store
