package indexer

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/reportqa/internal/errs"
)

func reconstruct(parts []string, overlap int) string {
	if len(parts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		r := []rune(p)
		if len(r) > overlap {
			b.WriteString(string(r[overlap:]))
		}
	}
	return b.String()
}

func TestNewChunker_invalid(t *testing.T) {
	tests := []struct {
		name            string
		window, overlap int
	}{
		{"equal", 300, 300},
		{"overlap larger", 100, 300},
		{"zero window", 0, 0},
		{"negative overlap", 10, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.window, tt.overlap)
			if !errors.Is(err, errs.ConfigurationError) {
				t.Errorf("NewChunker(%d, %d) error = %v, want ConfigurationError", tt.window, tt.overlap, err)
			}
		})
	}
}

func TestChunker_Split(t *testing.T) {
	c, err := NewChunker(10, 3)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"shorter than window", "abc", []string{"abc"}},
		{"exact window", "abcdefghij", []string{"abcdefghij", "hij"}},
		{"two windows", "abcdefghijklmno", []string{"abcdefghij", "hijklmno"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Split(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Split(%q) = %q, want %q", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunker_Split_reconstructs(t *testing.T) {
	c, err := NewChunker(3000, 300)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{1, 299, 2700, 2999, 3000, 3001, 5700, 10000, 25123} {
		text := strings.Repeat("abcdefghijklmnopqrstuvwxyz0123456789 ", n/37+1)[:n]
		parts := c.Split(text)
		if got := reconstruct(parts, 300); got != text {
			t.Errorf("n=%d: reconstruction mismatch (len %d vs %d)", n, len(got), len(text))
		}
		for i, p := range parts {
			l := utf8.RuneCountInString(p)
			if l > 3000 {
				t.Errorf("n=%d: chunk %d has %d chars", n, i, l)
			}
			if l < 3000 && i != len(parts)-1 {
				t.Errorf("n=%d: short chunk %d is not last", n, i)
			}
		}
	}
}

func TestChunker_Split_idempotent(t *testing.T) {
	c, _ := NewChunker(50, 5)
	text := strings.Repeat("The quarterly revenue grew steadily. ", 20)
	a, b := c.Split(text), c.Split(text)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs", i)
		}
	}
}

func TestChunker_Split_multibyte(t *testing.T) {
	c, _ := NewChunker(4, 1)
	text := "日本語のテキストです"
	parts := c.Split(text)
	for i, p := range parts {
		if !utf8.ValidString(p) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
	}
	if got := reconstruct(parts, 1); got != text {
		t.Errorf("reconstruct = %q, want %q", got, text)
	}
}

func TestChunker_Chunk(t *testing.T) {
	c, _ := NewChunker(5, 1)
	chunks := c.Chunk("r1", "one two three four")
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.ReportID != "r1" {
			t.Errorf("chunk %d ReportID=%s", i, ch.ReportID)
		}
		if ch.Index != i {
			t.Errorf("chunk %d Index=%d", i, ch.Index)
		}
		if ch.Vector != nil {
			t.Errorf("chunk %d should have no vector yet", i)
		}
	}
	if got := c.Chunk("r1", ""); len(got) != 0 {
		t.Errorf("empty text should yield no chunks, got %d", len(got))
	}
}
