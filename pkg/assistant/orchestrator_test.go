package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramlab/engram/pkg/memory"
)

// fakeCompleter returns scripted responses per stage, identified by the
// system prompt opening.
type fakeCompleter struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	block     bool
	calls     []string
}

func stageOf(system string) string {
	switch {
	case strings.HasPrefix(system, "You extract search queries"):
		return "queries"
	case strings.HasPrefix(system, "You decide what"):
		return "decide"
	case strings.HasPrefix(system, "You file a single new fact"):
		return "draft"
	case strings.HasPrefix(system, "You revise a single existing memory"):
		return "update"
	}
	return "unknown"
}

func (f *fakeCompleter) Complete(ctx context.Context, msgs []Message, jsonMode bool) (string, error) {
	stage := stageOf(msgs[0].Content)

	f.mu.Lock()
	f.calls = append(f.calls, stage)
	block := f.block
	err := f.errs[stage]
	resp := f.responses[stage]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

// fakeMemoryService records mutations and serves scripted recall output.
type fakeMemoryService struct {
	mu        sync.Mutex
	created   []memory.Draft
	updated   []*memory.Memory
	deleted   []string
	existing  map[string]*memory.Memory
	recall    string
	recallErr error
	similar   []memory.ScoredMemory
}

func newFakeMemoryService() *fakeMemoryService {
	return &fakeMemoryService{
		existing: make(map[string]*memory.Memory),
		recall:   memory.NoMemoriesSentinel,
	}
}

func (f *fakeMemoryService) CreateMemory(ctx context.Context, draft memory.Draft) (*memory.Memory, *memory.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, draft)
	m := &memory.Memory{
		ID:          fmt.Sprintf("mem-%d", len(f.created)),
		Category:    draft.Category,
		Subcategory: draft.Subcategory,
		Name:        draft.Name,
		Content:     memory.Content{Text: draft.Text},
	}
	return m, &memory.MutationResult{File: true, Index: true, Vector: true}, nil
}

func (f *fakeMemoryService) GetMemory(ctx context.Context, id string) (*memory.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[id], nil
}

func (f *fakeMemoryService) UpdateMemory(ctx context.Context, m *memory.Memory) (*memory.Memory, *memory.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, m)
	return m, &memory.MutationResult{File: true, Index: true}, nil
}

func (f *fakeMemoryService) DeleteMemory(ctx context.Context, id string) (bool, *memory.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return true, &memory.MutationResult{File: true, Index: true, Vector: true}, nil
}

func (f *fakeMemoryService) Recall(ctx context.Context, queries []string) (string, error) {
	return f.recall, f.recallErr
}

func (f *fakeMemoryService) SearchSimilar(ctx context.Context, query string, k int) ([]memory.ScoredMemory, error) {
	return f.similar, nil
}

func newTestOrchestrator(t *testing.T, completer *fakeCompleter, memories *fakeMemoryService) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(OrchestratorConfig{
		Completer: completer,
		Memories:  memories,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return o
}

func userMessage(text string) []Message {
	return []Message{{Role: RoleUser, Content: text}}
}

func TestExtractQueries(t *testing.T) {
	completer := &fakeCompleter{responses: map[string]string{
		"queries": `{"_thinking": "chess came up", "q": ["chess", "hobbies"]}`,
	}}
	o := newTestOrchestrator(t, completer, newFakeMemoryService())

	queries, err := o.ExtractQueries(context.Background(), userMessage("I played chess yesterday"))
	require.NoError(t, err)
	assert.Equal(t, []string{"chess", "hobbies"}, queries)
}

func TestExtractQueriesFailure(t *testing.T) {
	completer := &fakeCompleter{errs: map[string]error{
		"queries": fmt.Errorf("api down"),
	}}
	o := newTestOrchestrator(t, completer, newFakeMemoryService())

	_, err := o.ExtractQueries(context.Background(), userMessage("hello"))
	assert.ErrorIs(t, err, ErrQueryExtraction)
}

func TestRunNothingToLearn(t *testing.T) {
	completer := &fakeCompleter{responses: map[string]string{
		"queries": `{"q": ["weather"]}`,
		"decide":  `{"_thinking": "small talk", "add": [], "update": []}`,
	}}
	memories := newFakeMemoryService()
	o := newTestOrchestrator(t, completer, memories)

	result, err := o.Run(context.Background(), userMessage("nice weather today"))
	require.NoError(t, err)

	assert.Equal(t, memory.NoMemoriesSentinel, result.Recalled)
	assert.Equal(t, NoChangesSentinel, result.Modifications)
	assert.Empty(t, memories.created)
	assert.Empty(t, memories.updated)
	assert.Empty(t, memories.deleted)
}

func TestRunAddScenario(t *testing.T) {
	completer := &fakeCompleter{responses: map[string]string{
		"queries": `{"q": ["climbing"]}`,
		"decide":  `{"add": ["User started rock climbing"], "update": []}`,
		"draft": `{
			"category": "preferences",
			"subcategory": "hobbies",
			"name": "Rock climbing",
			"content": {"text": "Started bouldering this spring."},
			"metadata": {"tags": ["climbing"]}
		}`,
	}}
	memories := newFakeMemoryService()
	o := newTestOrchestrator(t, completer, memories)

	result, err := o.Run(context.Background(), userMessage("I started rock climbing!"))
	require.NoError(t, err)

	require.Len(t, memories.created, 1)
	assert.Equal(t, "preferences", memories.created[0].Category)
	assert.Equal(t, "Rock climbing", memories.created[0].Name)

	assert.Contains(t, result.Modifications, `<added status="success" name="Rock climbing" id="mem-1">User started rock climbing</added>`)
}

func TestRunUpdateScenario(t *testing.T) {
	createdAt := time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC)
	memories := newFakeMemoryService()
	memories.existing["abc-123"] = &memory.Memory{
		ID:        "abc-123",
		Name:      "Chess",
		CreatedAt: createdAt,
	}

	completer := &fakeCompleter{responses: map[string]string{
		"queries": `{"q": ["chess"]}`,
		"decide":  `{"add": [], "update": [{"id": "abc-123", "instructions": "plays at a club now"}]}`,
		"update": `{
			"updating": true,
			"memory": {
				"id": "abc-123",
				"category": "preferences",
				"subcategory": "hobbies",
				"name": "Chess",
				"content": {"text": "Plays chess at a local club now."}
			}
		}`,
	}}
	o := newTestOrchestrator(t, completer, memories)

	result, err := o.Run(context.Background(), userMessage("I joined a chess club"))
	require.NoError(t, err)

	require.Len(t, memories.updated, 1)
	assert.Equal(t, "abc-123", memories.updated[0].ID)
	assert.Equal(t, "Plays chess at a local club now.", memories.updated[0].Content.Text)
	// Creation timestamp survives a model-generated revision.
	assert.True(t, createdAt.Equal(memories.updated[0].CreatedAt))

	assert.Contains(t, result.Modifications, `<updated status="success" name="Chess" id="abc-123">Plays chess at a local club now.</updated>`)
}

func TestRunDeleteScenario(t *testing.T) {
	completer := &fakeCompleter{responses: map[string]string{
		"queries": `{"q": ["chess"]}`,
		"decide":  `{"update": [{"id": "abc-123", "instructions": "quit chess entirely"}]}`,
		"update":  `{"updating": false, "delete": ["abc-123"]}`,
	}}
	memories := newFakeMemoryService()
	o := newTestOrchestrator(t, completer, memories)

	result, err := o.Run(context.Background(), userMessage("I quit chess"))
	require.NoError(t, err)

	assert.Equal(t, []string{"abc-123"}, memories.deleted)
	assert.Contains(t, result.Modifications, `<deleted uuids="abc-123" />`)
}

func TestLearnItemFailureBecomesFailedOutcome(t *testing.T) {
	completer := &fakeCompleter{
		responses: map[string]string{},
		errs:      map[string]error{"draft": fmt.Errorf("model overloaded")},
	}
	memories := newFakeMemoryService()
	o := newTestOrchestrator(t, completer, memories)

	decision := ShouldLearnResult{Decision: &Decision{Add: []string{"some fact"}}}
	report := o.Learn(context.Background(), decision, memory.NoMemoriesSentinel)

	assert.Contains(t, report, `<added status="failed" name="" id="">some fact</added>`)
	assert.Empty(t, memories.created)
}

func TestLearnMalformedDraftBecomesFailedOutcome(t *testing.T) {
	completer := &fakeCompleter{responses: map[string]string{
		"draft": `not even json`,
	}}
	memories := newFakeMemoryService()
	o := newTestOrchestrator(t, completer, memories)

	decision := ShouldLearnResult{Decision: &Decision{Add: []string{"some fact"}}}
	report := o.Learn(context.Background(), decision, memory.NoMemoriesSentinel)

	assert.Contains(t, report, `<added status="failed"`)
	assert.Empty(t, memories.created)
}

func TestLearnParseFailureIsNoOp(t *testing.T) {
	o := newTestOrchestrator(t, &fakeCompleter{}, newFakeMemoryService())

	report := o.Learn(context.Background(), ShouldLearnResult{
		Failure: &ParseFailure{Reason: "not decodable"},
	}, memory.NoMemoriesSentinel)

	assert.Equal(t, NoChangesSentinel, report)
}

func TestRunRecallFailureDegradesToErrorSentinel(t *testing.T) {
	completer := &fakeCompleter{responses: map[string]string{
		"queries": `{"q": ["chess"]}`,
		"decide":  `{"add": [], "update": []}`,
	}}
	memories := newFakeMemoryService()
	memories.recallErr = fmt.Errorf("vector index unavailable")
	o := newTestOrchestrator(t, completer, memories)

	result, err := o.Run(context.Background(), userMessage("hello"))
	require.NoError(t, err)
	assert.Contains(t, result.Recalled, "<recalled_memories>Error:")
}

func TestCompletionTimeoutMapsToCapabilityTimeout(t *testing.T) {
	completer := &fakeCompleter{block: true}
	memories := newFakeMemoryService()
	o, err := NewOrchestrator(OrchestratorConfig{
		Completer:         completer,
		Memories:          memories,
		Logger:            zerolog.Nop(),
		CapabilityTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	decision := ShouldLearnResult{Decision: &Decision{Add: []string{"some fact"}}}
	report := o.Learn(context.Background(), decision, memory.NoMemoriesSentinel)
	assert.Contains(t, report, `<added status="failed"`)
}

func TestUpdateNoActionOutcome(t *testing.T) {
	completer := &fakeCompleter{responses: map[string]string{
		"update": `{"updating": false}`,
	}}
	memories := newFakeMemoryService()
	o := newTestOrchestrator(t, completer, memories)

	decision := ShouldLearnResult{Decision: &Decision{
		Update: []UpdateCandidate{{ID: "abc-123", Instructions: "nothing applies"}},
	}}
	report := o.Learn(context.Background(), decision, memory.NoMemoriesSentinel)

	assert.Contains(t, report, `<update_failed content="id=abc-123 instructions=nothing applies" />`)
	assert.Empty(t, memories.updated)
	assert.Empty(t, memories.deleted)
}

func TestRelevantContext(t *testing.T) {
	memories := newFakeMemoryService()
	memories.similar = []memory.ScoredMemory{
		{Memory: &memory.Memory{Content: memory.Content{Text: "first"}}, Similarity: 0.9},
		{Memory: &memory.Memory{Content: memory.Content{Text: "second"}}, Similarity: 0.8},
	}
	o := newTestOrchestrator(t, &fakeCompleter{}, memories)

	out, err := o.RelevantContext(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Equal(t, "first\n\nsecond", out)
}
