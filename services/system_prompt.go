package services

import (
	"fmt"
	"strings"

	"github/itish2003/manual-assistant/models"
)

// SystemPrompt is the standing instruction given to every generator backend.
const SystemPrompt = `You are a helpful assistant that answers questions about a product manual the user has uploaded.

Answer only from the manual excerpts supplied with each question. Page markers such as "--- Page 4 ---" tell you where an excerpt came from; cite the page when it helps the user find the section. If the excerpts do not contain the answer, say that the manual does not cover it. Do not invent steps, part numbers or specifications.`

// BuildQAPrompt lays out the numbered excerpts followed by the question.
func BuildQAPrompt(query string, docs []models.SourceDocument) string {
	var sb strings.Builder
	sb.WriteString("Based on the following excerpts from the manual, please answer the question.\n\nContext:\n")
	for i, doc := range docs {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "Excerpt %d:\n%s\n", i+1, doc.Text)
	}
	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "Question: %s", query)
	return sb.String()
}
