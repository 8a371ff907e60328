// Package config holds the settings record for the reincarnation plugin:
// which restart modes are enabled, the global cron schedule, the ordered
// regex rules with optional per-rule schedules, and the retry depth cap.
//
// The record round-trips through an opaque store (internal/store); the
// Manager keeps an immutable snapshot for concurrent readers and swaps
// it wholesale on every form submission.
package config
