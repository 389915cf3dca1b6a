package extract

import (
	"regexp"

	"lifepilot/internal/flex"
	appLog "lifepilot/internal/log"
)

// bracketList matches from the earliest '[' to the last ']' across newlines.
// Two independent lists in one response are captured together and fail to
// parse; that case falls through to the sanitized parse below.
var bracketList = regexp.MustCompile(`(?s)\[.*\]`)

// Extract recovers a JSON value (normally a list of records) from raw model
// output:
//
//  1. the greedy bracketed substring, parsed as JSON;
//  2. the whole response with code fences stripped, parsed as JSON;
//  3. an empty list.
func Extract(raw string) flex.Value {
	if raw == "" {
		return flex.NewList()
	}

	if m := bracketList.FindString(raw); m != "" {
		v, err := flex.Parse(m)
		if err == nil {
			return v
		}
		appLog.Debug("extract: bracketed candidate did not parse", "err", err, "candidate_len", len(m))
	}

	clean := Sanitize(raw)
	v, err := flex.Parse(clean)
	if err != nil {
		appLog.Debug("extract: sanitized response did not parse", "err", err, "response_len", len(raw))
		return flex.NewList()
	}
	return v
}
