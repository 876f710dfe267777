package intent

import (
	"testing"

	"github.com/hyperjump/reportqa/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		question string
		want     models.Intent
	}{
		{"Show me a pie chart of distribution", models.Intent{WantsChart: true, Kind: models.ChartPie, Metric: models.MetricTopTerms}},
		{"What's the trend over time?", models.Intent{WantsChart: false, Kind: models.ChartLine, Metric: models.MetricTopTerms}},
		{"compare chunk lengths", models.Intent{WantsChart: false, Kind: models.ChartBar, Metric: models.MetricTopTerms}},
		{"show a pie chart of terms", models.Intent{WantsChart: true, Kind: models.ChartPie, Metric: models.MetricTopTerms}},
		{"compare chunk lengths over time", models.Intent{WantsChart: false, Kind: models.ChartLine, Metric: models.MetricChunkLengths}},
		{"what is the revenue?", models.Intent{WantsChart: false, Kind: models.ChartBar, Metric: models.MetricTopTerms}},
		{"plot the trend", models.Intent{WantsChart: true, Kind: models.ChartLine, Metric: models.MetricTopTerms}},
		{"Visualise the distribution of sections", models.Intent{WantsChart: true, Kind: models.ChartPie, Metric: models.MetricTopTerms}},
		{"line graph of section length", models.Intent{WantsChart: true, Kind: models.ChartLine, Metric: models.MetricChunkLengths}},
		{"bar chart comparing chunk sizes", models.Intent{WantsChart: true, Kind: models.ChartBar, Metric: models.MetricTopTerms}},
		{"VISUALIZATION please", models.Intent{WantsChart: true, Kind: models.ChartBar, Metric: models.MetricTopTerms}},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			if got := Classify(tt.question); got != tt.want {
				t.Errorf("Classify(%q) = %+v, want %+v", tt.question, got, tt.want)
			}
		})
	}
}

func TestWantsChart_wholeWords(t *testing.T) {
	for _, q := range []string{"barely any growth", "the pipeline is ok", "graphite prices", "deadline"} {
		if WantsChart(q) {
			t.Errorf("WantsChart(%q) = true, want false", q)
		}
	}
}

func TestKind_pieBeatsLine(t *testing.T) {
	if got := Kind("line or pie?"); got != models.ChartPie {
		t.Errorf("Kind = %s, want pie", got)
	}
	if got := Kind("trend versus comparison"); got != models.ChartLine {
		t.Errorf("Kind = %s, want line", got)
	}
}
