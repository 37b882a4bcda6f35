package bridge

import (
	"testing"
	"time"
)

func TestIntervalPolicy(t *testing.T) {
	policy := intervalPolicy{
		base:           3 * time.Minute,
		nightCooldown:  time.Hour,
		nightStartHour: 22,
		nightEndHour:   7,
	}
	at := func(hour, minute int) time.Time {
		return time.Date(2026, 3, 1, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name   string
		now    time.Time
		atHome bool
		want   time.Duration
	}{
		{"day at home", at(14, 0), true, 3 * time.Minute},
		{"day away", at(14, 0), false, 3 * time.Minute},
		{"night at home", at(23, 45), true, time.Hour},
		{"night after midnight at home", at(3, 0), true, time.Hour},
		{"night away", at(23, 45), false, 3 * time.Minute},
		{"just before window opens", at(22, 29), true, 3 * time.Minute},
		{"window opens at half past", at(22, 30), true, time.Hour},
		{"window closes at half past", at(7, 30), true, 3 * time.Minute},
		// 31 minutes left in the window: shorten to land 3 minutes
		// into the day.
		{"transition into day", at(6, 59), true, 34 * time.Minute},
		// 2 minutes left: transition would be 5 minutes, above base.
		{"short transition", at(7, 28), true, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.next(tt.now, tt.atHome); got != tt.want {
				t.Errorf("next(%s, atHome=%t) = %v, want %v",
					tt.now.Format("15:04"), tt.atHome, got, tt.want)
			}
		})
	}
}

func TestIntervalPolicyTransitionNeverBelowBase(t *testing.T) {
	policy := intervalPolicy{
		base:           10 * time.Minute,
		nightCooldown:  time.Hour,
		nightStartHour: 22,
		nightEndHour:   7,
	}
	// 1 minute left in the window: 4 minute transition is below base.
	now := time.Date(2026, 3, 1, 7, 29, 0, 0, time.UTC)
	if got := policy.next(now, true); got != 10*time.Minute {
		t.Errorf("next = %v, want base 10m", got)
	}
}
