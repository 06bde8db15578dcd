package condense

import (
	"context"

	"github.com/jimmc414/thread-condenser/internal/llm"
)

// System prompt for per-segment summarization (v1)
const summarizationPromptV1 = `You summarize one segment of a work conversation. Produce a short plain-text summary (3-5 sentences) covering what was proposed, agreed, questioned, or flagged as risky. Keep the bracketed message identifiers out of the summary. Return only the summary text.`

const summarizeMaxTokens = 400

// SummarizeSegments produces one short plain-text summary per segment.
// Used for very long threads before extraction; each segment costs one
// completion call.
func SummarizeSegments(ctx context.Context, client llm.Client, model string, segments []string) ([]string, error) {
	outs := make([]string, 0, len(segments))
	for _, segment := range segments {
		text, err := client.CompleteText(ctx, llm.Request{
			System:      summarizationPromptV1,
			User:        segment,
			Model:       model,
			Temperature: 0.2,
			MaxTokens:   summarizeMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		outs = append(outs, text)
	}
	return outs, nil
}
