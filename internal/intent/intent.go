// Package intent decides whether a question asks for a chart and which one.
package intent

import (
	"regexp"

	"github.com/hyperjump/reportqa/internal/models"
)

var (
	chartWords = regexp.MustCompile(`(?i)\b(chart|graph|visuali[sz](e|ation)|plot|bar|line|pie)\b`)
	chunkWords = regexp.MustCompile(`(?i)\b(chunks?|sections?|lengths?)\b`)
)

type kindRule struct {
	kind models.ChartKind
	re   *regexp.Regexp
}

// Evaluated in order; the first match decides the kind.
var kindRules = []kindRule{
	{models.ChartPie, regexp.MustCompile(`(?i)\b(pie|distribution)\b`)},
	{models.ChartLine, regexp.MustCompile(`(?i)\b(line|over time|trend)\b`)},
	{models.ChartBar, regexp.MustCompile(`(?i)\b(bar|compare|comparison)\b`)},
}

// WantsChart reports whether the question mentions a chart-like word.
func WantsChart(question string) bool {
	return chartWords.MatchString(question)
}

// Kind returns the chart kind the question asks for, defaulting to bar.
func Kind(question string) models.ChartKind {
	for _, r := range kindRules {
		if r.re.MatchString(question) {
			return r.kind
		}
	}
	return models.ChartBar
}

// Classify returns the chart intent of question. Chunk lengths are only chosen for
// line charts; every other combination charts top terms.
func Classify(question string) models.Intent {
	kind := Kind(question)
	metric := models.MetricTopTerms
	if kind == models.ChartLine && chunkWords.MatchString(question) {
		metric = models.MetricChunkLengths
	}
	return models.Intent{
		WantsChart: WantsChart(question),
		Kind:       kind,
		Metric:     metric,
	}
}
