package availability

import (
	"fmt"
	"time"
)

// Slot is an open [Start, End) interval a caller may book.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ValidationError marks bad caller input. Handlers map it to a 400.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func errValidation(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// GenerateParams bounds a slot generation run. The timezone is a fixed
// minute offset, deliberately not a zone database: slot boundaries must be
// reproducible and independent of DST transitions.
type GenerateParams struct {
	RangeStart      time.Time
	RangeEnd        time.Time
	SlotDuration    time.Duration
	WorkdayStartMin int // minutes after local midnight
	WorkdayEndMin   int
	TZOffset        time.Duration
	ExcludeWeekends bool
	Limit           int
}

// GenerateSlots walks the requested range one local calendar day at a time
// and emits fixed-stride slots inside the workday window that do not overlap
// any busy interval. Slots come out in strict chronological order.
func GenerateSlots(p GenerateParams, busy []BusyInterval) ([]Slot, error) {
	if p.SlotDuration <= 0 {
		return nil, errValidation("slot duration must be positive")
	}
	if !p.RangeEnd.After(p.RangeStart) {
		return nil, errValidation("range_end must be after range_start")
	}
	if p.WorkdayEndMin <= p.WorkdayStartMin {
		return nil, errValidation("workday_end must be after workday_start")
	}
	if p.Limit <= 0 {
		return nil, errValidation("limit must be positive")
	}

	firstDay := localMidnight(p.RangeStart, p.TZOffset)
	lastDay := localMidnight(p.RangeEnd, p.TZOffset)

	slots := make([]Slot, 0, p.Limit)
	// The day holding range_end is still walked; the intraday guards bound
	// its trailing slots out.
	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		if p.ExcludeWeekends {
			wd := day.Weekday()
			if wd == time.Saturday || wd == time.Sunday {
				continue
			}
		}

		windowStart := day.Add(time.Duration(p.WorkdayStartMin) * time.Minute).Add(-p.TZOffset)
		windowEnd := day.Add(time.Duration(p.WorkdayEndMin) * time.Minute).Add(-p.TZOffset)

		for slotStart := windowStart; ; slotStart = slotStart.Add(p.SlotDuration) {
			slotEnd := slotStart.Add(p.SlotDuration)
			if slotEnd.After(windowEnd) {
				break
			}
			if !slotEnd.After(p.RangeStart) {
				continue
			}
			if !slotStart.Before(p.RangeEnd) {
				break
			}
			if slotEnd.After(p.RangeEnd) {
				continue
			}
			if overlapsAny(slotStart, slotEnd, busy) {
				continue
			}
			slots = append(slots, Slot{Start: slotStart, End: slotEnd})
			if len(slots) >= p.Limit {
				return slots, nil
			}
		}
	}
	return slots, nil
}

// localMidnight maps an absolute instant to the absolute instant of midnight
// of its local calendar day under the fixed offset. The returned time is
// still in the local frame (shift by -offset to go back to absolute).
func localMidnight(t time.Time, offset time.Duration) time.Time {
	local := t.UTC().Add(offset)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseClock parses an "HH:mm" workday bound into minutes after midnight.
func ParseClock(s string) (int, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return 0, errValidation("invalid time of day %q, want HH:mm", s)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
