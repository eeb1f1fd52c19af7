package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lensview/insight/internal/model"
)

func TestLoadDefinitions_EmbeddedCoversAllSections(t *testing.T) {
	defs, err := loadDefinitions("")
	if err != nil {
		t.Fatalf("load embedded defaults: %v", err)
	}
	for _, section := range model.AllSections {
		def, ok := defs[section]
		if !ok {
			t.Errorf("section %s missing", section)
			continue
		}
		if def.System == "" || def.Template == "" {
			t.Errorf("section %s has empty prompt parts", section)
		}
	}
}

func TestLoadDefinitions_FileOverridesOneSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	override := "sections:\n  tags:\n    system: custom system\n    template: custom {source_text}\n"
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	defs, err := loadDefinitions(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if defs[model.SectionTags].System != "custom system" {
		t.Errorf("override not applied: %q", defs[model.SectionTags].System)
	}
	if defs[model.SectionOverview].System == "" {
		t.Error("non-overridden sections must keep embedded defaults")
	}
}

func TestRender_SubstitutionAndDefaults(t *testing.T) {
	got := Render("lang={language} tone={tone} prefs={preferences} ctx={guidance}", Vars{})
	want := "lang=en tone=neutral prefs=none ctx=none"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRender_SourceTextCappedAndAnchored(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := Render("{source_text}", Vars{SourceText: long, MaxSourceChars: 10})

	if !strings.Contains(got, sourceStartMarker) || !strings.Contains(got, sourceEndMarker) {
		t.Error("anchor markers missing")
	}
	if strings.Contains(got, strings.Repeat("a", 11)) {
		t.Error("source text not capped")
	}
}

func TestRender_EmptySourceOmitsMarkers(t *testing.T) {
	got := Render("before {source_text} after", Vars{})
	if strings.Contains(got, sourceStartMarker) {
		t.Error("markers should not wrap empty source")
	}
}

func TestRender_Metadata(t *testing.T) {
	got := Render("{metadata}", Vars{Metadata: map[string]string{"channel": "news24"}})
	if !strings.Contains(got, "channel: news24") {
		t.Errorf("got %q", got)
	}
}

func TestRegistry_TTLReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	writeVersion := func(system string) {
		content := "sections:\n  tags:\n    system: " + system + "\n    template: t\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeVersion("v1")

	current := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	reg := NewRegistry(path, time.Minute, WithClock(func() time.Time { return current }))

	def, err := reg.Get(model.SectionTags)
	if err != nil {
		t.Fatal(err)
	}
	if def.System != "v1" {
		t.Fatalf("got %q", def.System)
	}

	// Before the TTL elapses the cached copy is served.
	writeVersion("v2")
	current = current.Add(30 * time.Second)
	def, _ = reg.Get(model.SectionTags)
	if def.System != "v1" {
		t.Errorf("reloaded before TTL: %q", def.System)
	}

	// At the TTL boundary the file is re-read.
	current = current.Add(30 * time.Second)
	def, _ = reg.Get(model.SectionTags)
	if def.System != "v2" {
		t.Errorf("not reloaded after TTL: %q", def.System)
	}
}

func TestRegistry_FailedReloadKeepsServing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	if err := os.WriteFile(path, []byte("sections:\n  tags:\n    system: good\n    template: t\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	current := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	reg := NewRegistry(path, time.Minute, WithClock(func() time.Time { return current }))
	if _, err := reg.Get(model.SectionTags); err != nil {
		t.Fatal(err)
	}

	os.Remove(path)
	current = current.Add(2 * time.Minute)
	def, err := reg.Get(model.SectionTags)
	if err != nil {
		t.Fatalf("previous copy should keep serving: %v", err)
	}
	if def.System != "good" {
		t.Errorf("got %q", def.System)
	}
}
