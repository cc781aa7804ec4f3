package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// The run itself is triggered by an external CI scheduler whose cron
// expressions are evaluated in UTC. These helpers only translate and preview
// that schedule; nothing here starts a timer.

var standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule validates a 5-field cron expression and rejects schedules
// that fire more often than every 5 minutes.
func ValidateSchedule(schedule string) error {
	if _, err := standardParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) != 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields, got %d", len(parts))
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// NextRuns returns the next n activation times of a UTC cron expression
// after from, converted to loc for display.
func NextRuns(expr string, n int, from time.Time, loc *time.Location) ([]time.Time, error) {
	sched, err := standardParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	runs := make([]time.Time, 0, n)
	t := from.UTC()
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		runs = append(runs, t.In(loc))
	}
	return runs, nil
}

// CronForLocal converts a daily local wall-clock time ("08:30") in loc into
// the equivalent UTC cron expression ("30 0 * * *"). The offset in effect on
// ref is used, so zones with daylight saving need re-checking twice a year.
func CronForLocal(hhmm string, loc *time.Location, ref time.Time) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	local, err := time.ParseInLocation("15:04", strings.TrimSpace(hhmm), loc)
	if err != nil {
		return "", fmt.Errorf("invalid time %q, expected HH:MM: %w", hhmm, err)
	}

	r := ref.In(loc)
	at := time.Date(r.Year(), r.Month(), r.Day(), local.Hour(), local.Minute(), 0, 0, loc).UTC()

	expr := fmt.Sprintf("%d %d * * *", at.Minute(), at.Hour())
	if _, err := standardParser.Parse(expr); err != nil {
		return "", fmt.Errorf("generated invalid cron expression %q: %w", expr, err)
	}
	return expr, nil
}
