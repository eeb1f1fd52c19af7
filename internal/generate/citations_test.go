package generate

import (
	"encoding/json"
	"testing"
)

func TestGateCitations_StripsUnknownURLs(t *testing.T) {
	body := []byte(`{
		"claims": [
			{"text": "claim one [1]", "status": "verified",
			 "sources": ["https://real.example/a", "https://invented.example/x"]}
		],
		"references": ["https://real.example/a", "https://invented.example/x", "https://real.example/a"]
	}`)
	allowed := map[string]bool{"https://real.example/a": true}

	gated, err := GateCitations(body, allowed)
	if err != nil {
		t.Fatal(err)
	}

	var tc truthCheckBody
	if err := json.Unmarshal(gated, &tc); err != nil {
		t.Fatal(err)
	}

	if len(tc.Claims[0].Sources) != 1 || tc.Claims[0].Sources[0] != "https://real.example/a" {
		t.Errorf("sources not filtered: %v", tc.Claims[0].Sources)
	}
	if len(tc.References) != 1 {
		t.Errorf("references not deduplicated: %v", tc.References)
	}
	if tc.Claims[0].Text != "claim one [1]" {
		t.Errorf("in-range marker must survive: %q", tc.Claims[0].Text)
	}
}

func TestGateCitations_StripsDanglingMarkers(t *testing.T) {
	body := []byte(`{
		"claims": [{"text": "fact [1] and fiction [7]", "status": "unverified"}],
		"references": ["https://real.example/a"]
	}`)
	allowed := map[string]bool{"https://real.example/a": true}

	gated, err := GateCitations(body, allowed)
	if err != nil {
		t.Fatal(err)
	}

	var tc truthCheckBody
	if err := json.Unmarshal(gated, &tc); err != nil {
		t.Fatal(err)
	}
	if tc.Claims[0].Text != "fact [1] and fiction " {
		t.Errorf("got %q", tc.Claims[0].Text)
	}
}

func TestGateCitations_EmptyAllowSetStripsEverything(t *testing.T) {
	body := []byte(`{
		"claims": [{"text": "c [1]", "status": "verified", "sources": ["https://x.example"]}],
		"references": ["https://x.example"]
	}`)

	gated, err := GateCitations(body, map[string]bool{})
	if err != nil {
		t.Fatal(err)
	}

	var tc truthCheckBody
	if err := json.Unmarshal(gated, &tc); err != nil {
		t.Fatal(err)
	}
	if len(tc.Claims[0].Sources) != 0 || len(tc.References) != 0 {
		t.Errorf("nothing should survive an empty allow set: %s", gated)
	}
	if tc.Claims[0].Text != "c " {
		t.Errorf("got %q", tc.Claims[0].Text)
	}
}
