package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// ParsedEvent is the normalized view of one exported VEVENT.
type ParsedEvent struct {
	UID         string
	Summary     string
	Description string

	Start time.Time
	End   time.Time

	RawRRule string
}

// Inspect parses a serialized calendar back into its events. It is used to
// sanity-check an export before offering it and to expand its recurrence.
func Inspect(payload string) ([]ParsedEvent, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, errors.New("empty ICS payload")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader([]byte(payload)))
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0, 1)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			return nil, perr
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, err
	}
	out.Start = start
	out.End = end

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}
	return out, nil
}
