package condense

import (
	"regexp"
	"strings"
)

var (
	mentionRe    = regexp.MustCompile(`@([A-Za-z0-9._-]+)`)
	selfAssignRe = regexp.MustCompile(`(?i)\bI(?:'m| will| can| shall)?\b`)
	imperativeRe = regexp.MustCompile(`(?i)\b(please|can you|could you|take|own|handle|drive)\b`)
)

// InferOwner guesses who owns a task from its text. A known mention
// token paired with imperative phrasing wins; then any @-mention with
// imperative phrasing; then self-assignment language falls back to the
// last speaker. Returns "" when nothing matches.
func InferOwner(text string, mentionMap map[string]string, lastSpeaker string) string {
	imperative := imperativeRe.MatchString(text)
	for token, canonical := range mentionMap {
		if imperative && token != "" && strings.Contains(text, token) {
			return canonical
		}
	}
	if m := mentionRe.FindStringSubmatch(text); m != nil && imperative {
		candidate := m[1]
		if canonical, ok := mentionMap[candidate]; ok {
			return canonical
		}
		return candidate
	}
	if selfAssignRe.MatchString(text) && lastSpeaker != "" {
		return lastSpeaker
	}
	return ""
}

// fillActionOwners infers owners for actions the extraction left
// unassigned, using the people map as the mention vocabulary and the
// action's own quotes as context.
func fillActionOwners(result *CondenseResult) {
	mentions := map[string]string{}
	for _, person := range result.PeopleMap {
		if person.DisplayName != "" {
			mentions["@"+person.DisplayName] = person.DisplayName
		}
	}
	for i := range result.Actions {
		action := &result.Actions[i]
		if action.Owner != "" {
			continue
		}
		text := action.Task
		for _, ref := range action.SupportingMsgs {
			text += "\n" + ref.Quote
		}
		if owner := InferOwner(text, mentions, ""); owner != "" {
			action.Owner = owner
		}
	}
}
