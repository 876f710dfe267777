package indexer

import (
	"strings"
	"testing"
)

func BenchmarkChunker_Split(b *testing.B) {
	c, err := NewChunker(3000, 300)
	if err != nil {
		b.Fatal(err)
	}
	text := strings.Repeat("Revenue grew steadily across every region this quarter. ", 2000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Split(text)
	}
}
