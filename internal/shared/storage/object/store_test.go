package object

import (
	"errors"
	"testing"
)

func TestJoinPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "1700000000000-notes.pdf", want: "1700000000000-notes.pdf"},
		{name: "simple prefix", prefix: "uploads", key: "a.pdf", want: "uploads/a.pdf"},
		{name: "prefix trailing slash", prefix: "uploads/", key: "a.pdf", want: "uploads/a.pdf"},
		{name: "prefix and key slashes", prefix: "/uploads/", key: "/a.pdf", want: "uploads/a.pdf"},
		{name: "nested prefix", prefix: "env/uploads", key: "a.pdf", want: "env/uploads/a.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := JoinPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("JoinPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"", " ", "..", ".", "a/b.pdf", `a\b.pdf`, "../x.pdf"} {
		if err := ValidateKey(key); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("ValidateKey(%q) = %v, want ErrInvalidKey", key, err)
		}
	}
	if err := ValidateKey("1700000000000-my_notes.pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
