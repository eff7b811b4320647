package domain

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// MaxSlotCandidates is the hard cap on candidates emitted by a single scan,
// across all scanned days.
const MaxSlotCandidates = 10

// FallbackLeadTime is how far after "now" the fallback slot starts when a
// scan produces no candidates at all.
const FallbackLeadTime = 15 * time.Minute

// BusyInterval is a half-open [Start, End) span of occupied calendar time.
// Owned marks intervals created by this service rather than pulled from an
// external feed; Tag carries the source label. The busy set is rebuilt
// wholesale on every scan, never mutated in place.
type BusyInterval struct {
	Start time.Time
	End   time.Time
	Owned bool
	Tag   string
}

// ScanConfig controls a free-slot scan. Callers are responsible for supplying
// well-formed values: positive durations, MinDurationMinutes <=
// MaxDurationMinutes, DayStartHour < DayEndHour.
type ScanConfig struct {
	DaysToScan         int
	MinDurationMinutes int
	MaxDurationMinutes int
	DayStartHour       int
	DayEndHour         int
}

// SlotCandidate is a proposed free interval. ID is derived deterministically
// from (Start, DurationMinutes), so the same wall-clock slot yields the same
// identifier across repeated scans regardless of the busy set.
type SlotCandidate struct {
	ID              string
	Start           time.Time
	End             time.Time
	DurationMinutes int
}

// SlotID returns the deterministic identifier for a slot starting at start
// with the given duration.
func SlotID(start time.Time, durationMinutes int) string {
	seed := "breakly:slot:" + start.UTC().Format(time.RFC3339) + ":" + strconv.Itoa(durationMinutes)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

// FindFreeSlots scans up to cfg.DaysToScan days starting at now's day and
// returns candidate break slots carved from the gaps between busy intervals.
//
// Each day is scanned inside the [DayStartHour, DayEndHour) window in now's
// location. On the first day the cursor is clamped to now so past time is
// never offered. Gaps are carved greedily left to right: a maximal slot when
// the remaining gap fits one, otherwise a minimal slot, otherwise nothing.
// Candidates never overlap a busy interval and never start before now. At
// most MaxSlotCandidates are returned.
func FindFreeSlots(busy []BusyInterval, cfg ScanConfig, now time.Time) []SlotCandidate {
	out := make([]SlotCandidate, 0, MaxSlotCandidates)

	for day := 0; day < cfg.DaysToScan; day++ {
		if len(out) >= MaxSlotCandidates {
			break
		}

		dayBase := startOfDay(now).AddDate(0, 0, day)
		windowStart := dayBase.Add(time.Duration(cfg.DayStartHour) * time.Hour)
		windowEnd := dayBase.Add(time.Duration(cfg.DayEndHour) * time.Hour)

		cursor := windowStart
		if day == 0 && now.After(cursor) {
			cursor = now
		}

		for _, b := range busyOnDay(busy, dayBase) {
			limit := b.Start
			if limit.After(windowEnd) {
				limit = windowEnd
			}
			out = carveGap(out, cursor, limit, cfg, now)
			if b.End.After(cursor) {
				cursor = b.End
			}
		}

		out = carveGap(out, cursor, windowEnd, cfg, now)
	}

	return out
}

// HasConflict reports whether [start, end) overlaps any busy interval.
// Intervals are half-open, so touching endpoints do not conflict.
func HasConflict(busy []BusyInterval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Start.Before(end) && start.Before(b.End) {
			return true
		}
	}
	return false
}

// FallbackSlot proposes a single slot when a scan found nothing: it starts
// FallbackLeadTime after now and is carved against the remainder of today's
// window with the usual duration policy. ok is false when not even a minimal
// slot fits before the window closes.
func FallbackSlot(cfg ScanConfig, now time.Time) (SlotCandidate, bool) {
	windowEnd := startOfDay(now).Add(time.Duration(cfg.DayEndHour) * time.Hour)
	start := now.Add(FallbackLeadTime)

	slots := carveGap(nil, start, windowEnd, cfg, now)
	if len(slots) == 0 {
		return SlotCandidate{}, false
	}
	return slots[0], true
}

// carveGap appends slots carved from [from, to) onto out until the gap is
// exhausted or the global cap is reached. Slots starting before now are
// skipped but still consume their span of the gap.
func carveGap(out []SlotCandidate, from, to time.Time, cfg ScanConfig, now time.Time) []SlotCandidate {
	minDur := time.Duration(cfg.MinDurationMinutes) * time.Minute
	maxDur := time.Duration(cfg.MaxDurationMinutes) * time.Minute

	cursor := from
	for len(out) < MaxSlotCandidates {
		remaining := to.Sub(cursor)

		var minutes int
		switch {
		case remaining >= maxDur:
			minutes = cfg.MaxDurationMinutes
		case remaining >= minDur:
			minutes = cfg.MinDurationMinutes
		default:
			return out
		}

		end := cursor.Add(time.Duration(minutes) * time.Minute)
		if !cursor.Before(now) {
			out = append(out, SlotCandidate{
				ID:              SlotID(cursor, minutes),
				Start:           cursor,
				End:             end,
				DurationMinutes: minutes,
			})
		}
		cursor = end
	}
	return out
}

// busyOnDay returns the intervals whose start falls on the calendar day
// beginning at dayBase, sorted chronologically. Events are assumed not to
// span midnight for scanning purposes.
func busyOnDay(busy []BusyInterval, dayBase time.Time) []BusyInterval {
	dayEnd := dayBase.AddDate(0, 0, 1)

	sameDay := make([]BusyInterval, 0, len(busy))
	for _, b := range busy {
		if !b.Start.Before(dayBase) && b.Start.Before(dayEnd) {
			sameDay = append(sameDay, b)
		}
	}
	sort.Slice(sameDay, func(i, j int) bool {
		return sameDay[i].Start.Before(sameDay[j].Start)
	})
	return sameDay
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
