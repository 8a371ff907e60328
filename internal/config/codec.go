package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	yaml "go.yaml.in/yaml/v3"
)

// The record is persisted as YAML. Decoding goes YAML -> JSON -> strict
// JSON decode so unknown fields are rejected the same way for YAML and
// plain-JSON records (YAML is a superset of JSON, so both pass through).

// EncodeRecord serializes a record for the store.
func EncodeRecord(c *Config) ([]byte, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode settings record: %w", err)
	}
	return b, nil
}

// DecodeRecord parses stored bytes back into a record. Unknown fields and
// trailing data are errors so a corrupted or mis-targeted record is caught
// at the boundary, not read as zero values.
func DecodeRecord(data []byte) (*Config, error) {
	jb, err := coerceToJSONBytes(data)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode settings record: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("decode settings record: trailing data")
		}
		return nil, fmt.Errorf("decode settings record: %w", err)
	}
	return &cfg, nil
}

func coerceToJSONBytes(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	v = normalizeYAML(v)
	j, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML ensures all map keys are strings so the result can be
// JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
