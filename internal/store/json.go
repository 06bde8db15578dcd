package store

import (
	"encoding/json"
	"fmt"
)

// marshalMap renders a metadata/reactions map as its TEXT column form.
// nil maps serialize to "{}" so scans never see NULL JSON.
func marshalMap(m any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshaling json column: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata column: %w", err)
	}
	return m, nil
}

func unmarshalReactions(raw string) (map[string]int, error) {
	if raw == "" {
		return map[string]int{}, nil
	}
	var m map[string]int
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("unmarshaling reactions column: %w", err)
	}
	return m, nil
}

// mergeMetadata folds incoming keys into existing metadata without
// clobbering existing entries with empty values.
func mergeMetadata(existing, incoming map[string]any) map[string]any {
	if existing == nil {
		existing = map[string]any{}
	}
	for k, v := range incoming {
		if s, ok := v.(string); ok && s == "" {
			if _, present := existing[k]; present {
				continue
			}
		}
		existing[k] = v
	}
	return existing
}
