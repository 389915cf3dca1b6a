package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	appLog "lifepilot/internal/log"
)

const (
	// EventName is the summary of every exported plan event.
	EventName = "LifePilot Plan"
	// EventDuration is the fixed length of the exported block.
	EventDuration = 4 * time.Hour

	productID = "-//LifePilot//Daily Plan//EN"

	// MaxRepeatDays bounds the daily recurrence added by SerializeOptions.
	MaxRepeatDays = 30
)

// SerializeOptions tweaks the exported calendar.
type SerializeOptions struct {
	// RepeatDays > 1 makes the event recur daily that many times.
	RepeatDays int
	// Now stamps DTSTAMP/CREATED; zero means time.Now().
	Now time.Time
	// UID overrides the generated event UID (tests).
	UID string
}

// Serialize builds a calendar with a single EventDuration event starting at
// start, with planText as its description. It returns "" when the calendar
// cannot be built; callers then omit the export.
func Serialize(planText string, start time.Time) string {
	return SerializeWith(planText, start, SerializeOptions{})
}

// SerializeWith is Serialize with options.
func SerializeWith(planText string, start time.Time, opts SerializeOptions) (out string) {
	defer func() {
		if r := recover(); r != nil {
			appLog.Error("ics serialize panicked", fmt.Errorf("%v", r))
			out = ""
		}
	}()

	if start.IsZero() {
		appLog.Error("ics serialize skipped", fmt.Errorf("zero start time"))
		return ""
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	uid := opts.UID
	if uid == "" {
		uid = uuid.NewString() + "@lifepilot"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	ev := cal.AddEvent(uid)
	ev.SetCreatedTime(now)
	ev.SetDtStampTime(now)
	ev.SetStartAt(start)
	ev.SetEndAt(start.Add(EventDuration))
	ev.SetSummary(EventName)
	ev.SetDescription(planText)

	if opts.RepeatDays > 1 {
		rule, err := dailyRule(opts.RepeatDays)
		if err != nil {
			appLog.Error("ics recurrence skipped", err, "repeat_days", opts.RepeatDays)
		} else {
			ev.AddRrule(rule)
		}
	}

	return cal.Serialize()
}

// dailyRule renders FREQ=DAILY;COUNT=n, validated through rrule-go.
func dailyRule(days int) (string, error) {
	if days > MaxRepeatDays {
		days = MaxRepeatDays
	}
	opt := rrule.ROption{Freq: rrule.DAILY, Count: days}
	if _, err := rrule.NewRRule(opt); err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}
