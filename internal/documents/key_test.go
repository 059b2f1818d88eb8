package documents

import (
	"strings"
	"testing"
	"time"
)

func TestStorageKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	if got := StorageKey(now, "my notes.pdf"); got != "1700000000123-my_notes.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := StorageKey(now, "../../etc/passwd"); strings.Contains(got, "/") {
		t.Fatalf("key must be flat, got %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"notes.pdf":       "notes",
		"REPORT.PDF":      "REPORT",
		"archive.pdf.zip": "archive.pdf.zip",
		"no-extension":    "no-extension",
		".pdf":            ".pdf",
	}
	for in, want := range cases {
		if got := DisplayName(in); got != want {
			t.Fatalf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
	long := strings.Repeat("é", 300) + ".pdf"
	if got := DisplayName(long); len([]rune(got)) != maxNameLength {
		t.Fatalf("expected %d runes, got %d", maxNameLength, len([]rune(got)))
	}
}
