package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CheckLevel grades a field check: OK, a non-blocking advisory, or an
// error meaning the value cannot be used as given.
type CheckLevel int

const (
	LevelOK CheckLevel = iota
	LevelWarning
	LevelError
)

func (l CheckLevel) String() string {
	switch l {
	case LevelOK:
		return "ok"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("CheckLevel(%d)", int(l))
	}
}

// CheckResult is the outcome of a single field check. Message is empty
// for LevelOK.
type CheckResult struct {
	Level   CheckLevel
	Message string
}

func ok() CheckResult                { return CheckResult{Level: LevelOK} }
func warning(msg string) CheckResult { return CheckResult{Level: LevelWarning, Message: msg} }
func failure(msg string) CheckResult { return CheckResult{Level: LevelError, Message: msg} }

// cronParser accepts the standard five-field crontab grammar plus
// descriptors like @daily. No seconds field, no hash (H) syntax.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// CheckCronTime validates the global cron schedule.
func CheckCronTime(value string) CheckResult {
	if strings.TrimSpace(value) == "" {
		return failure("Cron time is null.")
	}
	if _, err := cronParser.Parse(value); err != nil {
		return failure("Cron time could not be parsed. Please check for type errors!")
	}
	return ok()
}

// CheckRegexCronTime validates a per-rule cron override. Empty is not an
// error: it means the rule falls back to the global schedule.
func CheckRegexCronTime(value string) CheckResult {
	if value == "" {
		return warning("Global cron time will be used for this regular expression.")
	}
	return CheckCronTime(value)
}

// CheckRegexValue validates a rule's regular expression.
func CheckRegexValue(value string) CheckResult {
	if strings.TrimSpace(value) == "" {
		return warning("RegEx is empty.")
	}
	if _, err := regexp.Compile(value); err != nil {
		return failure("RegEx cannot be compiled!")
	}
	return ok()
}

// CheckField dispatches a live per-field check by form field name. The
// host UI calls this once per keystroke-ish; keep it cheap and pure.
func CheckField(name, value string) (CheckResult, error) {
	switch name {
	case "cronTime":
		return CheckCronTime(value), nil
	case "regExCronTime":
		return CheckRegexCronTime(value), nil
	case "regExValue":
		return CheckRegexValue(value), nil
	default:
		return CheckResult{}, fmt.Errorf("no check for field %q", name)
	}
}

// FieldCheck ties a check result to the field it was run against.
// Rule is -1 for the global fields, otherwise the rule index.
type FieldCheck struct {
	Field  string
	Rule   int
	Result CheckResult
}

// Check runs every field check over the whole record, in field order:
// the global schedule first, then each rule's expression and override.
func (c *Config) Check() []FieldCheck {
	out := []FieldCheck{
		{Field: "cronTime", Rule: -1, Result: CheckCronTime(c.CronTime)},
	}
	for i, r := range c.RegExprs {
		out = append(out,
			FieldCheck{Field: "regExValue", Rule: i, Result: CheckRegexValue(r.Value)},
			FieldCheck{Field: "regExCronTime", Rule: i, Result: CheckRegexCronTime(r.CronTime)},
		)
	}
	return out
}

// NextRestartTimes returns the next n fire times of the global schedule,
// for display next to the form.
func (c *Config) NextRestartTimes(n int, from time.Time) ([]time.Time, error) {
	sched, err := cronParser.Parse(c.CronTime)
	if err != nil {
		return nil, fmt.Errorf("cron time %q: %w", c.CronTime, err)
	}
	times := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		times = append(times, t)
	}
	return times, nil
}
