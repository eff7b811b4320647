package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	"breakly/backend/internal/domain"
)

// maxOccurrencesPerEvent bounds recurrence expansion so a runaway RRULE
// cannot blow up a scan.
const maxOccurrencesPerEvent = 1000

// Expand turns parsed events into busy intervals inside [windowStart,
// windowEnd). All-day events are skipped: they describe the day, not a span
// of occupied time, and must not block break slots.
func Expand(events []Event, windowStart, windowEnd time.Time) []domain.BusyInterval {
	out := make([]domain.BusyInterval, 0, len(events))

	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		if ev.RawRRule == "" {
			if ev.Start.Before(windowEnd) && ev.End.After(windowStart) {
				out = append(out, busyInterval(ev, ev.Start, ev.End))
			}
			continue
		}
		out = append(out, expandRecurring(ev, windowStart, windowEnd)...)
	}

	return out
}

func expandRecurring(ev Event, windowStart, windowEnd time.Time) []domain.BusyInterval {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		// Unparseable rule: fall back to the base occurrence only.
		if ev.Start.Before(windowEnd) && ev.End.After(windowStart) {
			return []domain.BusyInterval{busyInterval(ev, ev.Start, ev.End)}
		}
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	duration := ev.End.Sub(ev.Start)

	// Widen the query left so an occurrence that starts before the window
	// but runs into it is still counted as busy.
	queryStart := windowStart.Add(-duration).In(ev.Start.Location())
	queryEnd := windowEnd.In(ev.Start.Location())

	occTimes := set.Between(queryStart, queryEnd, true)
	if len(occTimes) > maxOccurrencesPerEvent {
		occTimes = occTimes[:maxOccurrencesPerEvent]
	}

	out := make([]domain.BusyInterval, 0, len(occTimes))
	for _, start := range occTimes {
		end := start.Add(duration)
		if start.Before(windowEnd) && end.After(windowStart) {
			out = append(out, busyInterval(ev, start, end))
		}
	}
	return out
}

func busyInterval(ev Event, start, end time.Time) domain.BusyInterval {
	return domain.BusyInterval{
		Start: start,
		End:   end,
		Owned: false,
		Tag:   ev.FeedID,
	}
}
