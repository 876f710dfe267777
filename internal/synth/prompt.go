// Package synth turns a retrieval context into a grounded answer via a chat completion model.
package synth

import (
	"fmt"
	"strings"

	"github.com/hyperjump/reportqa/internal/models"
)

// SystemPrompt fixes the tone and the grounding rules for every answer.
const SystemPrompt = "You are a warm, encouraging analyst. Use clear, plain language and keep responses concise. " +
	"Answer the user's question using ONLY the provided report excerpts. " +
	"If the answer isn't in the excerpts, kindly say you don't have enough information and suggest what the user could ask next. " +
	"When helpful, reference excerpt numbers like [#2] to ground your answer."

// NoAnswer is returned when the model produces no content.
const NoAnswer = "No answer generated."

// BuildContext renders excerpts as "[#n score=0.123]\ntext" blocks separated by blank lines,
// where n is the 1-based chunk number.
func BuildContext(rc models.RetrievalContext) string {
	pieces := make([]string, len(rc))
	for i, c := range rc {
		pieces[i] = fmt.Sprintf("[#%d score=%.3f]\n%s", c.ChunkIndex+1, c.Score, c.Text)
	}
	return strings.Join(pieces, "\n\n")
}

// UserPrompt frames the excerpts and the question for the model.
func UserPrompt(reportName, excerpts, question string) string {
	if strings.TrimSpace(reportName) == "" {
		reportName = "Untitled"
	}
	return "Report: " + reportName +
		"\n\n--- BEGIN EXCERPTS ---\n" + excerpts +
		"\n--- END EXCERPTS ---\n\nQuestion: " + question
}
