package embedding

import (
	"context"
	"math"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
}

func TestCachedEmbedder(t *testing.T) {
	mock := NewMockEmbedder(8)
	e := NewCachedEmbedder(mock, 10)
	ctx := context.Background()

	a1, err := e.Embed(ctx, "what is revenue?")
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := e.Embed(ctx, "what is revenue?")
	if mock.Calls() != 1 {
		t.Errorf("inner calls = %d, want 1", mock.Calls())
	}
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatal("cached embedding differs")
		}
	}

	vecs, err := e.EmbedBatch(ctx, []string{"what is revenue?", "costs", "margin"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 || mock.Calls() != 3 {
		t.Errorf("vecs=%d calls=%d, want 3 and 3", len(vecs), mock.Calls())
	}
	want, _ := mock.Embed(ctx, "margin")
	for i := range want {
		if vecs[2][i] != want[i] {
			t.Fatal("batch order not preserved")
		}
	}
}

func TestNewCachedEmbedder_disabled(t *testing.T) {
	mock := NewMockEmbedder(4)
	if e := NewCachedEmbedder(mock, 0); e != Embedder(mock) {
		t.Error("zero capacity should return the inner embedder")
	}
}

func TestMockEmbedder_deterministicUnitLength(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "hello")
	b, _ := e.Embed(ctx, "hello")
	c, _ := e.Embed(ctx, "world")
	var norm float64
	same, differs := true, false
	for i := range a {
		norm += float64(a[i]) * float64(a[i])
		same = same && a[i] == b[i]
		differs = differs || a[i] != c[i]
	}
	if !same || !differs {
		t.Errorf("same=%v differs=%v", same, differs)
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Errorf("norm^2 = %f, want 1", norm)
	}
	if e.Dimensions() != 16 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
}
