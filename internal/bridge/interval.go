package bridge

import "time"

// intervalPolicy decides how long to wait between polls. Night
// cooldown applies only while the car is parked at home; the half
// hour offsets put the window at HH:30 on both edges.
type intervalPolicy struct {
	base           time.Duration
	nightCooldown  time.Duration
	nightStartHour int
	nightEndHour   int
}

const nightEdgeMinute = 30

// transitionBufferMinutes delays the first day poll slightly past the
// window edge so it lands in normal polling territory.
const transitionBufferMinutes = 3

// next returns the wait before the next poll at the given moment.
func (p intervalPolicy) next(now time.Time, atHome bool) time.Duration {
	nowMin := now.Hour()*60 + now.Minute()
	startMin := p.nightStartHour*60 + nightEdgeMinute
	endMin := p.nightEndHour*60 + nightEdgeMinute

	if !inWindow(nowMin, startMin, endMin) || !atHome {
		return p.base
	}

	// A full cooldown that would overshoot the end of the window gets
	// shortened so polling resumes just after the window closes.
	minutesUntilDay := (endMin - nowMin + 24*60) % (24 * 60)
	cooldownMinutes := int(p.nightCooldown / time.Minute)
	if minutesUntilDay < cooldownMinutes {
		transition := time.Duration(minutesUntilDay+transitionBufferMinutes) * time.Minute
		if transition < p.base {
			return p.base
		}
		return transition
	}
	return p.nightCooldown
}

// inWindow handles windows that span midnight.
func inWindow(now, start, end int) bool {
	if start <= end {
		return now >= start && now < end
	}
	return now >= start || now < end
}
