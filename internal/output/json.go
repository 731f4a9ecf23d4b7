package output

import (
	"encoding/json"
)

// RenderJSON renders v, a result or a list of results, as indented JSON.
func RenderJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
