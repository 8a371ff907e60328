// Package logx configures structured logging for the reincarnation tools.
//
// It is a small wrapper (logx.Logger) on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - The zero value safe (a no-op logger)
package logx
