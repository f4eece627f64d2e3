package assistant

import (
	"fmt"
	"strings"
)

// NoChangesSentinel is the exact report emitted when a learning pass changed
// nothing.
const NoChangesSentinel = "<memory_modifications>\n<no_changes>No memories were added, updated, or deleted.</no_changes>\n</memory_modifications>"

type addOutcome struct {
	Status  string
	Name    string
	ID      string
	Content string
}

type updateOutcome struct {
	Status  string
	Name    string
	ID      string
	Content string
	Deleted []string
}

// formatModifications renders the learning report. Every add produces an
// element regardless of status; updates fan out by outcome.
func formatModifications(adds []addOutcome, updates []updateOutcome) string {
	var b strings.Builder
	b.WriteString("<memory_modifications>\n")

	for _, a := range adds {
		fmt.Fprintf(&b, "<added status=%q name=%q id=%q>%s</added>\n", a.Status, a.Name, a.ID, a.Content)
	}

	for _, u := range updates {
		switch u.Status {
		case "success":
			fmt.Fprintf(&b, "<updated status=%q name=%q id=%q>%s</updated>\n", u.Status, u.Name, u.ID, u.Content)
		case "deleted":
			fmt.Fprintf(&b, "<deleted uuids=%q />\n", strings.Join(u.Deleted, ","))
		default:
			fmt.Fprintf(&b, "<update_failed content=%q />\n", u.Content)
		}
	}

	b.WriteString("</memory_modifications>")

	report := b.String()
	if report == "<memory_modifications>\n</memory_modifications>" {
		return NoChangesSentinel
	}
	return report
}

func joinParagraphs(texts []string) string {
	return strings.Join(texts, "\n\n")
}
