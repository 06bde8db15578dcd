package condense

import (
	"sort"

	"github.com/jimmc414/thread-condenser/internal/store"
)

// ReactionIndex maps canonical message ids to their total reaction
// count.
type ReactionIndex map[string]int

// BuildReactionIndex sums each message's reactions under its canonical
// id.
func BuildReactionIndex(messages []*store.Message) ReactionIndex {
	index := ReactionIndex{}
	for _, msg := range messages {
		canonical := msg.CanonicalID()
		if canonical == "" {
			continue
		}
		total := 0
		for _, count := range msg.Reactions {
			total += count
		}
		index[canonical] = total
	}
	return index
}

// ScoreItem computes the deterministic rank score:
// confidence + 0.05*agreement + 0.05*seniority + recency - contradiction,
// clamped to [0, 1]. Agreement is the summed reaction count across the
// item's supporting messages.
func ScoreItem(confidence float64, refs []SupportRef, idx ReactionIndex, seniorityWeight, recencyBonus, contradictionPenalty float64) float64 {
	agree := 0
	for _, ref := range refs {
		agree += idx[ref.MsgID]
	}
	score := confidence + 0.05*float64(agree) + 0.05*seniorityWeight + recencyBonus - contradictionPenalty
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// rankSection rescores, filters by threshold, and sorts one section.
// The sort is stable and descending, so equally scored items keep
// their extraction order.
func rankSection[T any](items []T, idx ReactionIndex, threshold float64, conf func(*T) *float64, refs func(*T) []SupportRef) []T {
	kept := make([]T, 0, len(items))
	for i := range items {
		c := conf(&items[i])
		score := ScoreItem(*c, refs(&items[i]), idx, 1.0, 0.0, 0.0)
		*c = score
		if score >= threshold {
			kept = append(kept, items[i])
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return *conf(&kept[i]) > *conf(&kept[j])
	})
	return kept
}

// RankAndFilter rescores every section of the result, drops items below
// the threshold, and orders each section by descending score.
func RankAndFilter(result *CondenseResult, idx ReactionIndex, threshold float64) *CondenseResult {
	result.Decisions = rankSection(result.Decisions, idx, threshold,
		func(d *Decision) *float64 { return &d.Confidence },
		func(d *Decision) []SupportRef { return d.SupportingMsgs })
	result.Risks = rankSection(result.Risks, idx, threshold,
		func(r *Risk) *float64 { return &r.Confidence },
		func(r *Risk) []SupportRef { return r.SupportingMsgs })
	result.Actions = rankSection(result.Actions, idx, threshold,
		func(a *ActionItem) *float64 { return &a.Confidence },
		func(a *ActionItem) []SupportRef { return a.SupportingMsgs })
	result.OpenQuestions = rankSection(result.OpenQuestions, idx, threshold,
		func(q *OpenQuestion) *float64 { return &q.Confidence },
		func(q *OpenQuestion) []SupportRef { return q.SupportingMsgs })
	return result
}
