package assistant

import (
	"fmt"
	"sort"
	"strings"

	"github.com/engramlab/engram/pkg/memory"
)

// taxonomyOutline renders the fixed category tree for inclusion in system
// prompts so the model only ever picks valid locations.
func taxonomyOutline() string {
	categories := make([]string, 0, len(memory.Taxonomy))
	for c := range memory.Taxonomy {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	for _, c := range categories {
		subs := append([]string(nil), memory.Taxonomy[c]...)
		sort.Strings(subs)
		fmt.Fprintf(&b, "- %s: %s\n", c, strings.Join(subs, ", "))
	}
	return b.String()
}

func extractQueriesPrompt() string {
	return fmt.Sprintf(`You extract search queries from a conversation so relevant memories can be recalled.

Memories are organized into categories and subcategories:
%s
Read the latest messages and produce short search phrases that would surface memories relevant to the conversation. Cover names, topics, preferences, places, and anything the user refers back to.

Respond with a JSON object:
{"_thinking": "brief reasoning", "q": ["query one", "query two"]}

Return an empty "q" array when nothing in the conversation calls for recall.`, taxonomyOutline())
}

func shouldLearnPrompt(memories string) string {
	return fmt.Sprintf(`You decide what, if anything, should be remembered from a conversation.

Memories are organized into categories and subcategories:
%s
Currently recalled memories:
%s

Compare the conversation against the recalled memories. Propose:
- "add": new facts worth keeping, each as a self-contained sentence
- "update": recalled memories that are now wrong, outdated, or incomplete, each with its id and instructions describing the change

Respond with a JSON object:
{"_thinking": "brief reasoning", "add": ["fact"], "update": [{"id": "uuid", "instructions": "what to change"}]}

Leave "add" and "update" empty when nothing new or contradictory appeared. Never duplicate a fact that is already stored.`, taxonomyOutline(), memories)
}

func structureMemoryPrompt(memories string) string {
	return fmt.Sprintf(`You file a single new fact into a structured memory.

Memories are organized into categories and subcategories:
%s
Currently recalled memories:
%s

Pick the best matching category and subcategory, give the memory a short descriptive name, and write the content as clear standalone text. Extract tags and any URLs mentioned.

Respond with a JSON object:
{"category": "...", "subcategory": "...", "name": "short name", "content": {"text": "..."}, "metadata": {"tags": ["tag"], "urls": ["https://..."]}}`, taxonomyOutline(), memories)
}

func updateMemoryPrompt(memories string) string {
	return fmt.Sprintf(`You revise a single existing memory according to instructions.

Memories are organized into categories and subcategories:
%s
Currently recalled memories:
%s

Decide one of three outcomes:
1. Revise: set "updating" to true and return the full corrected memory, keeping its id.
2. Delete: when the memory is obsolete, list the ids to remove in "delete".
3. Nothing: when the instructions do not apply, set "updating" to false and omit "memory" and "delete".

Respond with a JSON object:
{"_thinking": "brief reasoning", "updating": true, "memory": {"id": "uuid", "category": "...", "subcategory": "...", "name": "...", "content": {"text": "..."}, "metadata": {"tags": [], "urls": []}}, "delete": []}`, taxonomyOutline(), memories)
}
