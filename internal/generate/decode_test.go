package generate

import (
	"strings"
	"testing"
)

func TestDecodeJSONObject_Strict(t *testing.T) {
	body, err := decodeJSONObject(`{"summary": "ok"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(body), "summary") {
		t.Errorf("got %s", body)
	}
}

func TestDecodeJSONObject_FenceUnwrap(t *testing.T) {
	raw := "```json\n{\"tags\": [\"go\"]}\n```"
	body, err := decodeJSONObject(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(body), "{") {
		t.Errorf("got %s", body)
	}
}

func TestDecodeJSONObject_FenceWithoutLanguageTag(t *testing.T) {
	raw := "```\n{\"a\": 1}\n```"
	if _, err := decodeJSONObject(raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeJSONObject_FailsClosed(t *testing.T) {
	for _, raw := range []string{
		`Here is the JSON you asked for: {"a": 1}`,
		`{"truncated": `,
		`[1, 2, 3]`,
		``,
		"```\nnot json\n```",
	} {
		if _, err := decodeJSONObject(raw); err == nil {
			t.Errorf("input %q should fail", raw)
		}
	}
}
