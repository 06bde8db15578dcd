// Package condense turns an ingested thread into a ranked, provenance-
// linked brief: preprocess, segment, extract, rank, link.
package condense

// SupportRef points at a source message backing an extracted item. The
// msg_id is the canonical cross-platform identifier
// ("platform:native_id"); url is filled during provenance linking.
type SupportRef struct {
	Platform string `json:"platform"`
	NativeID string `json:"native_id"`
	MsgID    string `json:"msg_id"`
	Quote    string `json:"quote"`
	URL      string `json:"url,omitempty"`
}

// PersonRef identifies a participant referenced by extracted items.
type PersonRef struct {
	DisplayName string `json:"display_name"`
	Platform    string `json:"platform"`
	NativeID    string `json:"native_id,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Provenance records where a brief came from and which messages back it.
type Provenance struct {
	ThreadURL       string            `json:"thread_url"`
	MessageIDs      []string          `json:"message_ids"`
	ModelVersion    string            `json:"model_version,omitempty"`
	RunID           string            `json:"run_id,omitempty"`
	SourcePlatform  string            `json:"source_platform,omitempty"`
	SourceThreadRef map[string]string `json:"source_thread_ref"`
}

// Decision is a choice the thread converged on.
type Decision struct {
	Title          string       `json:"title"`
	Summary        string       `json:"summary"`
	Owner          string       `json:"owner,omitempty"`
	DueDate        string       `json:"due_date,omitempty"`
	Confidence     float64      `json:"confidence"`
	SupportingMsgs []SupportRef `json:"supporting_msgs"`
}

// Risk is a stated or implied hazard.
type Risk struct {
	Statement      string       `json:"statement"`
	Likelihood     string       `json:"likelihood"`
	Impact         string       `json:"impact"`
	Owner          string       `json:"owner,omitempty"`
	Mitigation     string       `json:"mitigation,omitempty"`
	Confidence     float64      `json:"confidence"`
	SupportingMsgs []SupportRef `json:"supporting_msgs"`
}

// ActionItem is a task someone should carry out.
type ActionItem struct {
	Task           string       `json:"task"`
	Owner          string       `json:"owner,omitempty"`
	DueDate        string       `json:"due_date,omitempty"`
	Status         string       `json:"status"`
	Confidence     float64      `json:"confidence"`
	SupportingMsgs []SupportRef `json:"supporting_msgs"`
}

// OpenQuestion is a question the thread left unanswered.
type OpenQuestion struct {
	Question        string       `json:"question"`
	WhoShouldAnswer string       `json:"who_should_answer,omitempty"`
	Confidence      float64      `json:"confidence"`
	SupportingMsgs  []SupportRef `json:"supporting_msgs"`
}

// CondenseResult is the brief produced by a condense run.
type CondenseResult struct {
	Platform      string               `json:"platform"`
	Decisions     []Decision           `json:"decisions"`
	Risks         []Risk               `json:"risks"`
	Actions       []ActionItem         `json:"actions"`
	OpenQuestions []OpenQuestion       `json:"open_questions"`
	PeopleMap     map[string]PersonRef `json:"people_map"`
	Provenance    Provenance           `json:"provenance"`
	Changelog     []map[string]any     `json:"changelog"`
}

// eachSupporting visits every supporting reference across all sections,
// allowing in-place mutation.
func (r *CondenseResult) eachSupporting(fn func(ref *SupportRef)) {
	for i := range r.Decisions {
		for j := range r.Decisions[i].SupportingMsgs {
			fn(&r.Decisions[i].SupportingMsgs[j])
		}
	}
	for i := range r.Risks {
		for j := range r.Risks[i].SupportingMsgs {
			fn(&r.Risks[i].SupportingMsgs[j])
		}
	}
	for i := range r.Actions {
		for j := range r.Actions[i].SupportingMsgs {
			fn(&r.Actions[i].SupportingMsgs[j])
		}
	}
	for i := range r.OpenQuestions {
		for j := range r.OpenQuestions[i].SupportingMsgs {
			fn(&r.OpenQuestions[i].SupportingMsgs[j])
		}
	}
}
