package tools

import "encoding/json"

// renderJSON renders v (an Atlas API response type, tagged with encoding/json
// struct tags rather than BSON) as indented JSON for a tool result.
func renderJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
