package model

import "testing"

func TestNormalizeURL_StripsTrackingParams(t *testing.T) {
	got := NormalizeURL("https://Example.com/article?utm_source=x&utm_medium=mail&id=7&fbclid=abc")
	want := "https://example.com/article?id=7"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeURL_DefaultPortAndFragment(t *testing.T) {
	got := NormalizeURL("HTTPS://example.com:443/path/#section")
	want := "https://example.com/path"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeURL_TrailingSlash(t *testing.T) {
	if NormalizeURL("https://example.com/a/") != NormalizeURL("https://example.com/a") {
		t.Error("trailing slash should not change identity")
	}
}

func TestNormalizeURL_Unparseable(t *testing.T) {
	got := NormalizeURL("  not a url  ")
	if got != "not a url" {
		t.Errorf("got %q", got)
	}
}

func TestIsEphemeralURL(t *testing.T) {
	cases := map[string]bool{
		"upload://doc/abc123":       true,
		"file:///home/me/notes.pdf": true,
		"data:text/plain;base64,aGk=": true,
		"blob:https://app/123":      true,
		"https://example.com/post":  false,
	}
	for url, want := range cases {
		if got := IsEphemeralURL(url); got != want {
			t.Errorf("IsEphemeralURL(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestContentItem_HasUsableText(t *testing.T) {
	item := &ContentItem{}
	if item.HasUsableText() {
		t.Error("empty text reported usable")
	}

	item.RawText = "hello"
	if !item.HasUsableText() {
		t.Error("real text reported unusable")
	}

	item.MarkAcquisitionFailed()
	if item.HasUsableText() {
		t.Error("failure sentinel reported usable")
	}
}

func TestContentItem_Domain(t *testing.T) {
	item := &ContentItem{URL: "https://www.Example.com/watch?v=1"}
	if got := item.Domain(); got != "example.com" {
		t.Errorf("got %q", got)
	}
}
