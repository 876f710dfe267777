package figure

import (
	"fmt"
	"sort"

	"github.com/hyperjump/reportqa/internal/models"
)

const textFocusedMessage = "This report is text-focused and doesn't contain visualizations. You can ask me specific questions about the content instead."

var priority = map[models.FigureType]int{
	models.FigureChart:   1,
	models.FigureGraph:   2,
	models.FigureTable:   3,
	models.FigureDiagram: 4,
	models.FigureOther:   5,
}

// Priority ranks a figure type for display; lower is shown first. Unknown types rank with other.
func Priority(t models.FigureType) int {
	if p, ok := priority[t]; ok {
		return p
	}
	return priority[models.FigureOther]
}

// Classify returns the size class of a report and how many figures it may show.
func Classify(totalPages int) (models.SizeClass, int) {
	switch {
	case totalPages < 5:
		return models.SizeSmall, 0
	case totalPages <= 15:
		return models.SizeMedium, 2
	default:
		return models.SizeLarge, 3
	}
}

// Select picks the figures to surface for a report of totalPages pages.
// The input slice is not modified.
func Select(figures []models.Figure, totalPages int) models.FigureSelection {
	class, max := Classify(totalPages)
	sel := models.FigureSelection{
		Shown:     []models.Figure{},
		Total:     len(figures),
		Cap:       max,
		SizeClass: class,
	}
	if class == models.SizeSmall {
		sel.Message = textFocusedMessage
		return sel
	}
	sel.Message = fmt.Sprintf("This report contains %d visualization(s). Showing up to %d key figures.", len(figures), max)

	sorted := append([]models.Figure(nil), figures...)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := Priority(sorted[i].Type), Priority(sorted[j].Type)
		if pi != pj {
			return pi < pj
		}
		return pageLess(sorted[i].Page, sorted[j].Page)
	})
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	sel.Shown = sorted
	return sel
}

// Missing pages sort after known ones.
func pageLess(a, b *int) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}
