package pipeline

import (
	"fmt"
	"strings"

	"lifepilot/internal/model"
)

func breakdownPrompt(goal string, mode Mode) string {
	instruction := ""
	if mode == ModeResearch {
		instruction = ResearchInstruction + " "
	}
	return fmt.Sprintf("%sBreak down '%s' into 3 short YouTube search queries. Return JSON list.", instruction, goal)
}

func schedulePrompt(goal, now string, resources []model.Resource) string {
	lines := make([]string, 0, len(resources))
	for _, r := range resources {
		lines = append(lines, fmt.Sprintf("%s (%s)", r.Title, r.Link))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current Time: %s.\n", now)
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	fmt.Fprintf(&b, "Resources: %s\n\n", strings.Join(lines, "\n"))
	fmt.Fprintf(&b, "Action: Create a Daily Schedule starting at %s.\n", now)
	b.WriteString("STRICT FORMAT: Return a JSON List of Objects.\n\n")
	b.WriteString("Example:\n[\n")
	fmt.Fprintf(&b, "    {\"time\": \"%s - ...\", \"activity\": \"Task 1\", \"emoji\": \"🚀\", \"resource_link\": \"http://...\"}\n", now)
	b.WriteString("]\n")
	return b.String()
}
