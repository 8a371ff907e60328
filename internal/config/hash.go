package config

import (
	"encoding/json"
	"hash/fnv"
)

// hashBytes returns a stable 64-bit hash of bytes. Empty input returns 0.
func hashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// hashRecord hashes the canonical JSON form of a record so whitespace and
// formatting changes in the stored bytes don't count as changes.
func hashRecord(c *Config) uint64 {
	if c == nil {
		return 0
	}
	b, err := json.Marshal(c)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}
