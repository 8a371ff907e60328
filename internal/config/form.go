package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Submission is the payload of the configuration form. Every field of the
// record is overwritten from it; there are no partial updates.
type Submission struct {
	ActiveTrigger string      `json:"activeTrigger" yaml:"activeTrigger"`
	MaxDepth      string      `json:"maxDepth" yaml:"maxDepth"`
	ActiveCron    string      `json:"activeCron" yaml:"activeCron"`
	CronTime      string      `json:"cronTime" yaml:"cronTime"`
	RegExprs      []RegexRule `json:"regExprs" yaml:"regExprs"`
	NoChange      string      `json:"noChange" yaml:"noChange"`
}

// record builds the new settings record from the submission.
//
// Only activeTrigger, maxDepth and activeCron are trimmed; cronTime and
// noChange are taken verbatim. Uneven, but existing records were written
// under exactly these trim rules.
func (s Submission) record() *Config {
	return &Config{
		ActiveTrigger: strings.TrimSpace(s.ActiveTrigger),
		MaxDepth:      strings.TrimSpace(s.MaxDepth),
		ActiveCron:    strings.TrimSpace(s.ActiveCron),
		CronTime:      s.CronTime,
		RegExprs:      append([]RegexRule(nil), s.RegExprs...),
		NoChange:      s.NoChange,
	}
}

// ParseSubmission decodes a form payload from JSON or YAML bytes.
// Unknown fields are rejected so typos in hand-written payloads fail
// loudly instead of silently clearing a setting.
func ParseSubmission(data []byte) (Submission, error) {
	jb, err := coerceToJSONBytes(data)
	if err != nil {
		return Submission{}, err
	}

	var sub Submission
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sub); err != nil {
		return Submission{}, fmt.Errorf("decode form submission: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Submission{}, fmt.Errorf("decode form submission: trailing data")
		}
		return Submission{}, fmt.Errorf("decode form submission: %w", err)
	}
	return sub, nil
}
