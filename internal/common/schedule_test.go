package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"daily", "30 0 * * *", false},
		{"weekdays", "30 0 * * 1-5", false},
		{"every 5 minutes", "*/5 * * * *", false},
		{"every minute", "* * * * *", true},
		{"every 2 minutes", "*/2 * * * *", true},
		{"six fields", "0 30 0 * * *", true},
		{"garbage", "daily please", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.schedule)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNextRuns(t *testing.T) {
	taipei, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)

	from := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	runs, err := NextRuns("30 0 * * *", 3, from, taipei)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	for i, run := range runs {
		assert.Equal(t, 8, run.Hour())
		assert.Equal(t, 30, run.Minute())
		assert.Equal(t, 5+i, run.Day())
		assert.Equal(t, taipei, run.Location())
	}
}

func TestNextRuns_InvalidExpression(t *testing.T) {
	_, err := NextRuns("not a cron", 1, time.Now(), nil)
	assert.Error(t, err)
}

func TestCronForLocal(t *testing.T) {
	taipei, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	ref := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		hhmm string
		loc  *time.Location
		want string
	}{
		{"taipei morning", "08:30", taipei, "30 0 * * *"},
		{"taipei wraps to previous UTC day", "06:00", taipei, "0 22 * * *"},
		{"new york winter", "17:15", newYork, "15 22 * * *"},
		{"utc", "23:59", time.UTC, "59 23 * * *"},
		{"nil location is utc", "07:05", nil, "5 7 * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CronForLocal(tt.hhmm, tt.loc, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, ValidateSchedule(got))
		})
	}
}

func TestCronForLocal_InvalidTime(t *testing.T) {
	_, err := CronForLocal("8.30am", time.UTC, time.Now())
	assert.Error(t, err)
}
