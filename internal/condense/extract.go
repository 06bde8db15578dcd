package condense

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jimmc414/thread-condenser/internal/llm"
	"github.com/jimmc414/thread-condenser/internal/platform"
)

// System prompt for brief extraction (v1)
const extractionPromptV1 = `You are a conversation condenser. Extract decisions, risks, action items, and open questions from the provided thread.

RULES:
1. Extract ONLY what participants explicitly stated - never infer or assume
2. Each item must cite supporting messages by their bracketed identifiers (e.g. [slack:1726000000.000100])
3. Each supporting message carries an exact quote from that message
4. Use confidence 0.0-1.0 based on how clearly the item is stated
5. A decision requires convergence: a proposal plus agreement or explicit sign-off
6. Return ONLY the JSON object, no additional text

SECTIONS:
- decisions: choices the thread converged on (title, summary, owner, due_date, confidence, supporting_msgs)
- risks: stated or implied hazards (statement, likelihood, impact, owner, mitigation, confidence, supporting_msgs)
- actions: tasks someone should do (task, owner, due_date, status, confidence, supporting_msgs)
- open_questions: questions left unanswered (question, who_should_answer, confidence, supporting_msgs)
- people_map: display-name index of participants referenced above

Each supporting message reference:
{"platform": "slack", "native_id": "1726000000.000100", "msg_id": "slack:1726000000.000100", "quote": "exact text"}`

// extractionSchemaHint is the compact JSON schema of the expected
// response, passed alongside the prompt so json-mode models anchor on
// the exact field names.
const extractionSchemaHint = `{"type":"object","properties":{"decisions":{"type":"array","items":{"type":"object","properties":{"title":{"type":"string"},"summary":{"type":"string"},"owner":{"type":"string"},"due_date":{"type":"string"},"confidence":{"type":"number"},"supporting_msgs":{"type":"array"}},"required":["title","summary","confidence","supporting_msgs"]}},"risks":{"type":"array","items":{"type":"object","properties":{"statement":{"type":"string"},"likelihood":{"type":"string"},"impact":{"type":"string"},"owner":{"type":"string"},"mitigation":{"type":"string"},"confidence":{"type":"number"},"supporting_msgs":{"type":"array"}},"required":["statement","likelihood","impact","confidence","supporting_msgs"]}},"actions":{"type":"array","items":{"type":"object","properties":{"task":{"type":"string"},"owner":{"type":"string"},"due_date":{"type":"string"},"status":{"type":"string"},"confidence":{"type":"number"},"supporting_msgs":{"type":"array"}},"required":["task","confidence","supporting_msgs"]}},"open_questions":{"type":"array","items":{"type":"object","properties":{"question":{"type":"string"},"who_should_answer":{"type":"string"},"confidence":{"type":"number"},"supporting_msgs":{"type":"array"}},"required":["question","confidence","supporting_msgs"]}},"people_map":{"type":"object"},"provenance":{"type":"object"}}}`

// maxMergedChars caps the merged thread content sent to the model.
const maxMergedChars = 200_000

// extractMaxTokens is the completion budget for an extraction call.
const extractMaxTokens = 2000

// Extractor runs a single structured extraction call per thread.
type Extractor struct {
	llm   llm.Client
	model string
}

// NewExtractor creates an extractor over an LLM client.
func NewExtractor(client llm.Client, model string) *Extractor {
	return &Extractor{llm: client, model: model}
}

// Extract merges the segments into one prompt, makes exactly one
// completion call, and validates the result. A response that is not
// valid JSON fails the run; there is no retry and no partial result.
func (e *Extractor) Extract(ctx context.Context, plat, threadURL string, ref *platform.ThreadRef, segments []string, runID string) (*CondenseResult, error) {
	merged := strings.Join(segments, "\n\n")
	if len(merged) > maxMergedChars {
		// Back the cut up to a rune boundary so the model never sees a
		// torn multi-byte sequence.
		cut := maxMergedChars
		for cut > 0 && !utf8.RuneStart(merged[cut]) {
			cut--
		}
		merged = merged[:cut]
	}
	user := fmt.Sprintf("Source platform: %s\nThread URL: %s\nSchema:\n%s\nContent:\n%s",
		plat, threadURL, extractionSchemaHint, merged)

	raw, err := e.llm.CompleteJSON(ctx, llm.Request{
		System:      extractionPromptV1,
		User:        user,
		Model:       e.model,
		Temperature: 0.2,
		MaxTokens:   extractMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	result := &CondenseResult{}
	if err := json.Unmarshal([]byte(raw), result); err != nil {
		return nil, fmt.Errorf("extraction returned invalid JSON: %w", err)
	}

	// Missing sections become empty, never null.
	if result.Decisions == nil {
		result.Decisions = []Decision{}
	}
	if result.Risks == nil {
		result.Risks = []Risk{}
	}
	if result.Actions == nil {
		result.Actions = []ActionItem{}
	}
	if result.OpenQuestions == nil {
		result.OpenQuestions = []OpenQuestion{}
	}
	if result.PeopleMap == nil {
		result.PeopleMap = map[string]PersonRef{}
	}
	if result.Changelog == nil {
		result.Changelog = []map[string]any{}
	}

	result.Platform = plat
	result.Provenance.ThreadURL = threadURL
	result.Provenance.RunID = runID
	result.Provenance.SourcePlatform = plat
	if ref != nil {
		result.Provenance.SourceThreadRef = ref.Map()
	}
	if result.Provenance.SourceThreadRef == nil {
		result.Provenance.SourceThreadRef = map[string]string{}
	}

	// Synthesize identifiers the model left blank, then rebuild the
	// provenance message index from what the items actually cite.
	seen := map[string]bool{}
	result.eachSupporting(func(sr *SupportRef) {
		if sr.Platform == "" {
			sr.Platform = plat
		}
		if sr.MsgID == "" {
			sr.MsgID = sr.Platform + ":" + sr.NativeID
		}
		if sr.MsgID != "" {
			seen[sr.MsgID] = true
		}
	})
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	result.Provenance.MessageIDs = ids

	return result, nil
}
