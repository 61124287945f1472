package entity

import (
	"encoding/json"
)

// RemoveEmptyStrings turns v into a JSON object and drops every top-level
// field whose value is the empty string. An empty string in a partial update
// means "no change", not "clear the field".
func RemoveEmptyStrings(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if err = json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	for k, val := range fields {
		if s, ok := val.(string); ok && s == "" {
			delete(fields, k)
		}
	}

	return fields, nil
}
