package extract

import "lifepilot/internal/flex"

// Flatten turns a model's "list of search queries" into plain strings.
// Nested lists are spliced one level deep; any other element is coerced with
// flex.Value.String. A non-list input becomes a single-element slice.
func Flatten(v flex.Value) []string {
	if !v.IsList() {
		return []string{v.String()}
	}

	out := make([]string, 0, v.Len())
	for _, item := range v.Items() {
		if item.IsList() {
			for _, inner := range item.Items() {
				out = append(out, inner.String())
			}
			continue
		}
		out = append(out, item.String())
	}
	return out
}

// Queries parses a breakdown response into search queries, falling back to
// []string{goal} when the response is empty or carries no usable list.
func Queries(response, goal string) []string {
	if response == "" {
		return []string{goal}
	}
	v := Extract(response)
	if !v.Truthy() {
		return []string{goal}
	}
	return Flatten(v)
}
