package config

import "strconv"

// Config is the whole settings record for the reincarnation plugin.
//
// The enable flags and the retry depth are stored as strings because the
// record has always been persisted that way, and existing records only
// count as enabled when the field is exactly "true". The raw encoding is
// kept; the typed accessors own the coercion.
//
// Legacy note:
//   - "True", "1", "yes" and a missing field all read as disabled.
//     That is a strict-equality convention, not boolean parsing, and
//     changing it would silently flip old records.
type Config struct {
	// ActiveCron enables the scheduled (cron) restart of failed jobs.
	ActiveCron string `json:"activeCron" yaml:"activeCron"`
	// ActiveTrigger enables the afterbuild restart of failed jobs.
	ActiveTrigger string `json:"activeTrigger" yaml:"activeTrigger"`
	// CronTime is the global cron schedule.
	CronTime string `json:"cronTime" yaml:"cronTime"`
	// RegExprs is the ordered list of failure-matching rules.
	RegExprs []RegexRule `json:"regExprs" yaml:"regExprs"`
	// MaxDepth caps consecutive afterbuild restarts, string-encoded.
	MaxDepth string `json:"maxDepth" yaml:"maxDepth"`
	// NoChange enables restarting jobs whose failing build had no SCM
	// change against the previous successful one.
	NoChange string `json:"noChange" yaml:"noChange"`
}

// RegexRule pairs a regular expression (matched against build failure
// output) with an optional cron override controlling when matching jobs
// may be restarted. An empty CronTime means the global schedule applies.
//
// NodeAction and MasterAction are opaque repair-script hooks executed by
// the trigger engine before a restart; this package only carries them.
type RegexRule struct {
	Value        string `json:"value" yaml:"value"`
	CronTime     string `json:"cronTime,omitempty" yaml:"cronTime,omitempty"`
	NodeAction   string `json:"nodeAction,omitempty" yaml:"nodeAction,omitempty"`
	MasterAction string `json:"masterAction,omitempty" yaml:"masterAction,omitempty"`
}

// Schedule returns the effective cron schedule for the rule: its own
// override when set, otherwise the global one.
func (r RegexRule) Schedule(global string) string {
	if r.CronTime == "" {
		return global
	}
	return r.CronTime
}

// Default returns the record used before anything has been saved.
func Default() *Config {
	return &Config{MaxDepth: "0", RegExprs: []RegexRule{}}
}

// CronRestartEnabled reports whether scheduled restarts are on.
// Only the exact string "true" counts.
func (c *Config) CronRestartEnabled() bool { return c.ActiveCron == "true" }

// TriggerRestartEnabled reports whether afterbuild restarts are on.
// Only the exact string "true" counts.
func (c *Config) TriggerRestartEnabled() bool { return c.ActiveTrigger == "true" }

// RestartUnchangedEnabled reports whether unchanged failed jobs may be
// restarted. Only the exact string "true" counts.
func (c *Config) RestartUnchangedEnabled() bool { return c.NoChange == "true" }

// MaxRetryDepth returns the restart depth cap. A malformed or negative
// stored value is reset to "0" and read as 0; the read path never fails.
func (c *Config) MaxRetryDepth() int {
	n, err := strconv.Atoi(c.MaxDepth)
	if err != nil || n < 0 {
		c.MaxDepth = "0"
		return 0
	}
	return n
}

// Sanitize normalizes the record in place: it repairs a malformed depth
// value and makes the rule list non-nil. The manager runs it at load and
// before every save so persisted state is always well-formed and the
// repair inside MaxRetryDepth stays a backstop.
func (c *Config) Sanitize() {
	c.MaxRetryDepth()
	if c.RegExprs == nil {
		c.RegExprs = []RegexRule{}
	}
}

// Clone returns a deep copy. Snapshots handed out by the manager are
// shared; clone before mutating.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.RegExprs = append([]RegexRule(nil), c.RegExprs...)
	return &cp
}
