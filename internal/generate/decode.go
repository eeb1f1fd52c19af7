package generate

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// decodeJSONObject validates that raw is a single well-formed JSON object,
// returning its canonical bytes. The only leniency applied is unwrapping a
// markdown code fence; anything else fails closed.
func decodeJSONObject(raw string) (json.RawMessage, error) {
	candidate := strings.TrimSpace(raw)

	if fenced, ok := unwrapFence(candidate); ok {
		candidate = fenced
	}

	if !strings.HasPrefix(candidate, "{") {
		return nil, eris.New("generate: response is not a JSON object")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, eris.Wrap(err, "generate: decode response")
	}

	return json.RawMessage(candidate), nil
}

// unwrapFence strips a single surrounding markdown code fence, with or
// without a language tag.
func unwrapFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	rest := strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		rest = rest[idx+1:]
	}
	end := strings.LastIndex(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}
