package resolver

import (
	"time"

	"playercore/internal/schedule"
)

// withinRecurrence reports whether now falls inside one of rec's active
// per-weekday windows. A nil recurrence always matches. Midnight-crossing
// windows (FromMinute > ToMinute) are split into two per-day intervals:
// [FromMinute, 1440) on the active day, and [0, ToMinute) on the
// following day.
func withinRecurrence(rec *schedule.Recurrence, now time.Time) bool {
	if rec == nil {
		return true
	}
	if len(rec.Weekdays) == 0 {
		return false
	}

	minuteOfDay := now.Hour()*60 + now.Minute()
	today := now.Weekday()
	yesterday := (today + 6) % 7

	crossesMidnight := rec.FromMinute > rec.ToMinute

	for _, wd := range rec.Weekdays {
		if wd == today {
			if !crossesMidnight {
				if minuteOfDay >= rec.FromMinute && minuteOfDay < rec.ToMinute {
					return true
				}
			} else if minuteOfDay >= rec.FromMinute {
				return true
			}
		}
		if wd == yesterday && crossesMidnight && minuteOfDay < rec.ToMinute {
			return true
		}
	}
	return false
}
