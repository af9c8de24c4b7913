package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"kbase/internal/domain"
)

// Agent derives core ideas, keywords and related-document links from
// document text. Ideas and keywords fall back to documented sentinel values
// on failure; relations are best-effort and fall back to an empty list.
type Agent struct {
	gen domain.Generator
	log *zap.Logger
}

// New creates an extractor over the given generation backend.
func New(gen domain.Generator, log *zap.Logger) *Agent {
	return &Agent{gen: gen, log: log}
}

// extractPrefixRunes bounds how much document text the prompt carries.
const extractPrefixRunes = 1000

// Extract makes one generation call for ideas/keywords and, when other
// documents have already been processed, a second call for relations.
func (a *Agent) Extract(text string, processed []domain.DocumentRecord) domain.Extraction {
	result := a.extractContent(text)
	result.RelatedDocs = []string{}
	if len(processed) > 0 {
		result.RelatedDocs = a.extractRelations(result.Keywords, processed)
	}
	return result
}

func (a *Agent) extractContent(text string) domain.Extraction {
	prompt := fmt.Sprintf(`Extract from the document content:
1. Core ideas (3-5 items, concise and clear)
2. Keywords (5-8 items, separated by commas)
Output format: JSON
{
    "core_ideas": ["Idea 1", "Idea 2"],
    "keywords": ["Keyword 1", "Keyword 2"]
}
Document content: %s`, truncateRunes(text, extractPrefixRunes))

	fallback := domain.Extraction{
		CoreIdeas: []string{domain.NoCoreIdeas},
		Keywords:  []string{domain.NoKeywords},
	}
	reply, err := a.gen.Complete(prompt)
	if err != nil || strings.TrimSpace(reply) == "" {
		a.log.Warn("content extraction produced no completion", zap.Error(err))
		return fallback
	}
	var result domain.Extraction
	if err := json.Unmarshal([]byte(stripFences(reply)), &result); err != nil {
		a.log.Warn("unparseable extraction response", zap.String("reply", truncateRunes(reply, 150)))
		return fallback
	}
	if len(result.CoreIdeas) == 0 {
		result.CoreIdeas = []string{domain.NoCoreIdeas}
	}
	if len(result.Keywords) == 0 {
		result.Keywords = []string{domain.NoKeywords}
	}
	return result
}

// extractRelations asks which processed documents relate to the current one.
// Any failure yields an empty list; relations never block ingestion.
func (a *Agent) extractRelations(keywords []string, processed []domain.DocumentRecord) []string {
	var summaries strings.Builder
	for i, doc := range processed {
		if i > 0 {
			summaries.WriteString("\n")
		}
		fmt.Fprintf(&summaries, "Document ID: %s, Title: %s, Keywords: %s",
			doc.ID, doc.Filename, strings.Join(doc.Keywords, ","))
	}
	prompt := fmt.Sprintf(`Below is the current document content and summaries of processed documents. Please determine which processed documents are related to the current document (based on keywords or topics):
Current document keywords: %s
Processed documents summaries: %s
Output list of related document IDs (return empty list if no relevance): ["doc_001", "doc_003"]`,
		strings.Join(keywords, ","), summaries.String())

	reply, err := a.gen.Complete(prompt)
	if err != nil || strings.TrimSpace(reply) == "" {
		return []string{}
	}
	var related []string
	if err := json.Unmarshal([]byte(stripFences(reply)), &related); err != nil {
		a.log.Warn("unparseable relation response", zap.String("reply", truncateRunes(reply, 150)))
		return []string{}
	}
	if related == nil {
		related = []string{}
	}
	return related
}

func stripFences(reply string) string {
	cleaned := strings.TrimSpace(reply)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[len("```json"):]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[len("```"):]
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
