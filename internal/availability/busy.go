package availability

import (
	"sort"
	"time"
)

// BusyInterval is a half-open [Start, End) range during which no slot may be
// offered. Derived per request; never persisted.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// RawRecord is a stored row's start/end values as scanned from the database.
// Values may be time.Time, *time.Time, or RFC3339 strings depending on the
// column type of the probed table.
type RawRecord struct {
	Start any
	End   any
}

// NormalizeBusy converts raw records into sorted, buffer-padded busy
// intervals. Records that fail to parse or have end <= start are skipped
// silently; malformed rows must never break availability reads.
func NormalizeBusy(records []RawRecord, buffer time.Duration) []BusyInterval {
	if buffer < 0 {
		buffer = 0
	}
	busy := make([]BusyInterval, 0, len(records))
	for _, rec := range records {
		start, ok := parseInstant(rec.Start)
		if !ok {
			continue
		}
		end, ok := parseInstant(rec.End)
		if !ok {
			continue
		}
		if !end.After(start) {
			continue
		}
		busy = append(busy, BusyInterval{
			Start: start.Add(-buffer),
			End:   end.Add(buffer),
		})
	}
	sort.Slice(busy, func(i, j int) bool {
		return busy[i].Start.Before(busy[j].Start)
	})
	return busy
}

// overlapsAny reports whether [slotStart, slotEnd) intersects any busy
// interval. Intervals are sorted by start, so the scan stops at the first
// interval entirely after the slot. Overlapping intervals need not be merged
// for this check to be correct.
func overlapsAny(slotStart, slotEnd time.Time, busy []BusyInterval) bool {
	for _, b := range busy {
		if !b.Start.Before(slotEnd) {
			return false
		}
		if slotStart.Before(b.End) && slotEnd.After(b.Start) {
			return true
		}
	}
	return false
}

func parseInstant(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05Z07:00", "2006-01-02T15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
