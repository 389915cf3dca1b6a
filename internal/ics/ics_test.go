package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func TestSerializeSingleEvent(t *testing.T) {
	loc := kolkata(t)
	start := time.Date(2026, 10, 17, 9, 30, 0, 0, loc)
	planText := "9:30 AM: Study\n11:00 AM: Practice\n"

	payload := SerializeWith(planText, start, SerializeOptions{UID: "fixed@lifepilot", Now: start})
	require.NotEmpty(t, payload)
	assert.True(t, strings.HasPrefix(payload, "BEGIN:VCALENDAR"))
	assert.Contains(t, payload, "SUMMARY:"+EventName)
	assert.Equal(t, 1, strings.Count(payload, "BEGIN:VEVENT"))
	assert.NotContains(t, payload, "RRULE")

	events, err := Inspect(payload)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "fixed@lifepilot", ev.UID)
	assert.Equal(t, EventName, ev.Summary)
	assert.Contains(t, ev.Description, "9:30 AM: Study")
	assert.True(t, ev.Start.Equal(start), "start %s", ev.Start)
	assert.Equal(t, EventDuration, ev.End.Sub(ev.Start))
}

func TestInspectDescriptionRoundTripsVerbatim(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	planText := "9:00 AM: write\\notes; then review, rest\n10:00 AM: C:\\Users\n"

	payload := SerializeWith(planText, start, SerializeOptions{UID: "rt@lifepilot", Now: start})
	require.NotEmpty(t, payload)

	events, err := Inspect(payload)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, planText, events[0].Description)
}

func TestSerializeDefaultsGenerateUID(t *testing.T) {
	payload := Serialize("plan", time.Now())
	require.NotEmpty(t, payload)

	events, err := Inspect(payload)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, strings.HasSuffix(events[0].UID, "@lifepilot"))
}

func TestSerializeEmptyPlanText(t *testing.T) {
	assert.NotEmpty(t, Serialize("", time.Now()))
}

func TestSerializeZeroStart(t *testing.T) {
	assert.Equal(t, "", Serialize("plan", time.Time{}))
}

func TestSerializeRepeatDays(t *testing.T) {
	loc := kolkata(t)
	start := time.Date(2026, 10, 17, 18, 0, 0, 0, loc)

	payload := SerializeWith("plan", start, SerializeOptions{RepeatDays: 3})
	require.NotEmpty(t, payload)
	assert.Contains(t, payload, "RRULE:FREQ=DAILY;COUNT=3")

	events, err := Inspect(payload)
	require.NoError(t, err)
	require.Len(t, events, 1)

	sessions := Sessions(events[0], loc)
	require.Len(t, sessions, 3)
	for i, s := range sessions {
		want := start.AddDate(0, 0, i)
		assert.True(t, s.Start.Equal(want), "session %d start %s want %s", i, s.Start, want)
		assert.Equal(t, EventDuration, s.End.Sub(s.Start))
		assert.Equal(t, loc, s.Start.Location())
	}
}

func TestSerializeRepeatDaysCapped(t *testing.T) {
	payload := SerializeWith("plan", time.Now(), SerializeOptions{RepeatDays: 365})
	assert.Contains(t, payload, "COUNT=30")
}

func TestSessionsNonRecurring(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	sessions := Sessions(ParsedEvent{Start: start, End: start.Add(EventDuration)}, time.UTC)
	require.Len(t, sessions, 1)
	assert.Equal(t, start, sessions[0].Start)
}

func TestSessionsBadRuleFallsBackToSingle(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	sessions := Sessions(ParsedEvent{UID: "x", Start: start, End: start.Add(time.Hour), RawRRule: "FREQ=NEVER"}, nil)
	assert.Len(t, sessions, 1)
}

func TestInspectRejectsEmpty(t *testing.T) {
	_, err := Inspect("   ")
	assert.Error(t, err)
}
