package model

import (
	"testing"
	"time"
)

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{
		"":       "en",
		"en-US":  "en",
		"DE":     "de",
		"pt-BR":  "pt",
		"zz-!!!": "en",
	}
	for in, want := range cases {
		if got := NormalizeLanguage(in); got != want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPeriodKey(t *testing.T) {
	ts := time.Date(2026, time.August, 24, 23, 30, 0, 0, time.FixedZone("UTC+10", 10*3600))
	// 23:30 UTC+10 is still August 24 in UTC.
	if got := PeriodKey(ts); got != "2026-08" {
		t.Errorf("got %q", got)
	}

	newYear := time.Date(2027, time.January, 1, 0, 0, 1, 0, time.UTC)
	if got := PeriodKey(newYear); got != "2027-01" {
		t.Errorf("got %q", got)
	}
}
