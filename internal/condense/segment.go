package condense

import (
	"fmt"
	"strings"

	"github.com/jimmc414/thread-condenser/internal/store"
	"github.com/jimmc414/thread-condenser/internal/tokenize"
)

// DefaultSegmentTokens is the per-segment token budget.
const DefaultSegmentTokens = 2000

// Segment packs messages greedily into segments under the token
// budget. Each message renders as one "[canonical_id] text" line; a
// line that would overflow the current segment starts the next one. A
// single oversized line still becomes its own segment; messages are
// never split or dropped.
func Segment(messages []*store.Message, counter tokenize.Counter, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultSegmentTokens
	}
	if counter == nil {
		counter = tokenize.Heuristic{}
	}

	var segments []string
	var buf strings.Builder
	tokens := 0
	for _, msg := range messages {
		line := fmt.Sprintf("[%s] %s\n", msg.CanonicalID(), msg.Text)
		count := counter.Count(line)
		if tokens+count > maxTokens && buf.Len() > 0 {
			segments = append(segments, buf.String())
			buf.Reset()
			buf.WriteString(line)
			tokens = count
		} else {
			buf.WriteString(line)
			tokens += count
		}
	}
	if buf.Len() > 0 {
		segments = append(segments, buf.String())
	}
	return segments
}
