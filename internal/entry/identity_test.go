package entry_test

import (
	"testing"

	"fieldsync/internal/entry"
)

func TestIDFromPath(t *testing.T) {
	cases := map[string]string{
		"/data/videos/clip_1.mp4":       "clip_1.mp4",
		"clip_2.MOV":                    "clip_2.MOV",
		"  /data/videos/clip_3.mp4  ":   "clip_3.mp4",
		"file:///var/mobile/leaf_4.mp4": "leaf_4.mp4",
		`C:\captures\leaf_5.mp4`:        "leaf_5.mp4",
		"/data/videos/":                 "videos",
		"":                              "",
		"/":                             "",
	}
	for input, want := range cases {
		if got := entry.IDFromPath(input); got != want {
			t.Fatalf("IDFromPath(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestIDFromPathNormalizesUnicode(t *testing.T) {
	decomposed := "/data/feuille_e\u0301te\u0301.mp4"
	composed := "/other/feuille_\u00e9t\u00e9.mp4"
	if entry.IDFromPath(decomposed) != entry.IDFromPath(composed) {
		t.Fatalf("expected NFC normalization to unify ids: %q vs %q",
			entry.IDFromPath(decomposed), entry.IDFromPath(composed))
	}
}

func TestInferenceKey(t *testing.T) {
	cases := map[string]string{
		"clip_1.mp4":     "clip_1",
		"clip.final.mov": "clip.final",
		"noext":          "noext",
		".hidden":        ".hidden",
		"":               "",
	}
	for input, want := range cases {
		if got := entry.InferenceKey(input); got != want {
			t.Fatalf("InferenceKey(%q) = %q, want %q", input, got, want)
		}
	}
}
