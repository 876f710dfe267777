package keyword

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/reportqa/internal/models"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	report := &models.Report{ID: "r1", Name: "Annual Review 2023.pdf"}
	if err := idx.Index(ctx, report, "Operating margin improved while supplier risk remained elevated."); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "supplier", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ReportID != "r1" {
		t.Fatalf("Search(supplier) = %+v, want r1", results)
	}
}

func TestBleveIndex_SearchFindsName(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Index(ctx, &models.Report{ID: "r1", Name: "q3_risk-review.pdf"}, "Body text."); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, "risk review", 10, &SearchOptions{NameBoost: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 || results[0].ReportID != "r1" {
		t.Fatalf("expected r1 for name match, got %+v", results)
	}
}

func TestBleveIndex_NameBoostRanksNameMatchFirst(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Index(ctx, &models.Report{ID: "content", Name: "notes.txt"}, "The forecast mentions growth twice: growth."); err != nil {
		t.Fatal(err)
	}
	if err := idx.Index(ctx, &models.Report{ID: "name", Name: "growth_plan.docx"}, "Unrelated body."); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, "growth", 10, &SearchOptions{NameBoost: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ReportID != "name" {
		t.Errorf("first result = %s, want name match", results[0].ReportID)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Index(ctx, &models.Report{ID: "r1", Name: "r.pdf"}, "quarterly revenue"); err != nil {
		t.Fatal(err)
	}
	exact, err := idx.Search(ctx, "revenu", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(exact) != 0 {
		t.Errorf("exact search should miss a typo, got %d", len(exact))
	}
	fuzzy, err := idx.Search(ctx, "revenu", 10, &SearchOptions{Fuzziness: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(fuzzy) != 1 {
		t.Errorf("fuzzy search should find r1, got %d", len(fuzzy))
	}
}

func TestBleveIndex_ReopenKeepsDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	idx1, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := idx1.Index(ctx, &models.Report{ID: "r1", Name: "T"}, "uniqueword"); err != nil {
		t.Fatal(err)
	}
	if err := idx1.Close(); err != nil {
		t.Fatal(err)
	}

	idx2, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = idx2.Close() }()
	n, err := idx2.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("DocCount after reopen = %d, want 1", n)
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Index(ctx, &models.Report{ID: "r1", Name: "T"}, "onlyinr1"); err != nil {
		t.Fatal(err)
	}
	if err := idx.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	results, err := idx.Search(ctx, "onlyinr1", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results after delete, got %d", len(results))
	}
}

func TestNewBleveIndex_createsDir(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "sub", "bleve")
	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	_ = idx.Close()
	if _, err := os.Stat(indexPath); err != nil {
		t.Errorf("index path should exist: %v", err)
	}
}
