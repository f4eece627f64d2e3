package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/engramlab/engram/pkg/memory"
)

// ErrQueryExtraction reports a malformed or error-flagged query-extraction
// response.
var ErrQueryExtraction = errors.New("query extraction failed")

// Decision is a well-formed should-learn response: free-text items to add and
// existing memories to reconsider.
type Decision struct {
	Thinking string            `json:"_thinking"`
	Add      []string          `json:"add"`
	Update   []UpdateCandidate `json:"update"`
}

// UpdateCandidate points at an existing memory with instructions on how to
// revise it.
type UpdateCandidate struct {
	ID           string `json:"id"`
	Instructions string `json:"instructions"`
}

// ParseFailure is the tagged alternative to a Decision: the capability
// responded, but not with something decodable. It is treated as "nothing to
// learn", never as a hard failure.
type ParseFailure struct {
	Reason string
}

// ShouldLearnResult is the tagged variant returned by the should-learn stage:
// exactly one of Decision and Failure is set.
type ShouldLearnResult struct {
	Decision *Decision
	Failure  *ParseFailure
}

// Empty reports whether the result carries no additions or updates.
func (r ShouldLearnResult) Empty() bool {
	if r.Failure != nil || r.Decision == nil {
		return true
	}
	return len(r.Decision.Add) == 0 && len(r.Decision.Update) == 0
}

// updateDecision is the structured response for one update candidate: revise
// the memory, delete by id, or do nothing.
type updateDecision struct {
	Thinking string         `json:"_thinking"`
	Updating bool           `json:"updating"`
	Memory   *memory.Memory `json:"memory"`
	Delete   []string       `json:"delete"`
}

const queriesSchema = `{
	"type": "object",
	"required": ["q"],
	"properties": {
		"_thinking": {"type": "string"},
		"q": {"type": "array", "items": {"type": "string"}}
	}
}`

const decisionSchema = `{
	"type": "object",
	"properties": {
		"_thinking": {"type": "string"},
		"add": {"type": "array", "items": {"type": "string"}},
		"update": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id"],
				"properties": {
					"id": {"type": "string"},
					"instructions": {"type": "string"}
				}
			}
		}
	}
}`

const draftSchema = `{
	"type": "object",
	"required": ["category", "subcategory", "name", "content"],
	"properties": {
		"category": {"type": "string"},
		"subcategory": {"type": "string"},
		"name": {"type": "string"},
		"content": {
			"type": "object",
			"required": ["text"],
			"properties": {"text": {"type": "string"}}
		},
		"metadata": {
			"type": "object",
			"properties": {
				"tags": {"type": "array", "items": {"type": "string"}},
				"urls": {"type": "array", "items": {"type": "string"}}
			}
		}
	}
}`

const updateSchema = `{
	"type": "object",
	"properties": {
		"_thinking": {"type": "string"},
		"updating": {"type": "boolean"},
		"memory": {
			"type": "object",
			"required": ["id"],
			"properties": {
				"id": {"type": "string"},
				"category": {"type": "string"},
				"subcategory": {"type": "string"},
				"name": {"type": "string"},
				"content": {
					"type": "object",
					"properties": {"text": {"type": "string"}}
				}
			}
		},
		"delete": {"type": "array", "items": {"type": "string"}}
	}
}`

// validateJSON checks a raw capability response against a schema and rejects
// error-flagged results before any decoding happens.
func validateJSON(schema, raw string) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return fmt.Errorf("response is not a JSON object: %w", err)
	}
	if flagged, ok := probe["error"]; ok {
		return fmt.Errorf("capability flagged an error: %s", string(flagged))
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var issues []string
		for _, e := range result.Errors() {
			issues = append(issues, e.String())
		}
		return fmt.Errorf("response does not match schema: %s", strings.Join(issues, "; "))
	}
	return nil
}

// decodeQueries parses a query-extraction response.
func decodeQueries(raw string) ([]string, error) {
	if err := validateJSON(queriesSchema, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExtraction, err)
	}
	var parsed struct {
		Queries []string `json:"q"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExtraction, err)
	}
	return parsed.Queries, nil
}

// decodeDecision parses a should-learn response into the tagged variant.
// Malformed output becomes a ParseFailure, not an error.
func decodeDecision(raw string) ShouldLearnResult {
	if err := validateJSON(decisionSchema, raw); err != nil {
		return ShouldLearnResult{Failure: &ParseFailure{Reason: err.Error()}}
	}
	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return ShouldLearnResult{Failure: &ParseFailure{Reason: err.Error()}}
	}
	return ShouldLearnResult{Decision: &d}
}

// decodeDraft parses a memory-structuring response into a draft.
func decodeDraft(raw string) (memory.Draft, error) {
	if err := validateJSON(draftSchema, raw); err != nil {
		return memory.Draft{}, err
	}
	var parsed struct {
		Category    string `json:"category"`
		Subcategory string `json:"subcategory"`
		Name        string `json:"name"`
		Content     struct {
			Text string `json:"text"`
		} `json:"content"`
		Metadata struct {
			Tags []string `json:"tags"`
			URLs []string `json:"urls"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return memory.Draft{}, err
	}
	return memory.Draft{
		Category:    parsed.Category,
		Subcategory: parsed.Subcategory,
		Name:        parsed.Name,
		Text:        parsed.Content.Text,
		Tags:        parsed.Metadata.Tags,
		URLs:        parsed.Metadata.URLs,
	}, nil
}

// decodeUpdateDecision parses an update-candidate response.
func decodeUpdateDecision(raw string) (*updateDecision, error) {
	if err := validateJSON(updateSchema, raw); err != nil {
		return nil, err
	}
	var d updateDecision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, err
	}
	return &d, nil
}
