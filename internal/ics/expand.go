package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "lifepilot/internal/log"
)

// Session is one concrete occurrence of an exported plan event.
type Session struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Sessions expands ev into concrete sessions in loc (time.Local when nil).
// A non-recurring event yields exactly one session. Sessions are capped at
// MaxRepeatDays.
func Sessions(ev ParsedEvent, loc *time.Location) []Session {
	if loc == nil {
		loc = time.Local
	}
	dur := ev.End.Sub(ev.Start)

	if ev.RawRRule == "" {
		return []Session{{Start: ev.Start.In(loc), End: ev.End.In(loc)}}
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return []Session{{Start: ev.Start.In(loc), End: ev.End.In(loc)}}
	}
	r.DTStart(ev.Start)

	// Bound the window so an open-ended rule cannot run away.
	rangeEnd := ev.Start.AddDate(0, 0, MaxRepeatDays)
	starts := r.Between(ev.Start, rangeEnd, true)
	if len(starts) > MaxRepeatDays {
		starts = starts[:MaxRepeatDays]
	}

	out := make([]Session, 0, len(starts))
	for _, s := range starts {
		out = append(out, Session{Start: s.In(loc), End: s.Add(dur).In(loc)})
	}
	return out
}
