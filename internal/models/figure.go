package models

import "fmt"

// FigureType is the detected kind of a figure reference.
type FigureType string

const (
	FigureChart   FigureType = "chart"
	FigureGraph   FigureType = "graph"
	FigureTable   FigureType = "table"
	FigureDiagram FigureType = "diagram"
	FigureOther   FigureType = "other"
)

// Valid reports whether t is a known figure type.
func (t FigureType) Valid() bool {
	switch t {
	case FigureChart, FigureGraph, FigureTable, FigureDiagram, FigureOther:
		return true
	}
	return false
}

// ParseFigureType validates a stored figure type. Unknown values map to other with an error.
func ParseFigureType(s string) (FigureType, error) {
	t := FigureType(s)
	if !t.Valid() {
		return FigureOther, fmt.Errorf("unknown figure type %q", s)
	}
	return t, nil
}

// Figure is a detected table/chart/graph/diagram reference. Page, FigureNumber, and Caption may be nil.
type Figure struct {
	ReportID     string     `json:"report_id,omitempty" db:"report_id"`
	Page         *int       `json:"page_number" db:"page_number"`
	FigureNumber *int       `json:"figure_number" db:"figure_number"`
	Caption      *string    `json:"caption" db:"caption"`
	Type         FigureType `json:"figure_type" db:"figure_type"`
}

// SizeClass buckets a report by page count for figure surfacing.
type SizeClass string

const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
)

// FigureSelection is the answer to "which figures should I show for this report".
type FigureSelection struct {
	Shown     []Figure  `json:"figures"`
	Total     int       `json:"total_figures"`
	Cap       int       `json:"max_figures"`
	Message   string    `json:"message"`
	SizeClass SizeClass `json:"report_size"`
}
