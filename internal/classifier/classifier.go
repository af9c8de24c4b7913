package classifier

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"kbase/internal/domain"
)

// Agent assigns a three-level category to document text. Each call makes one
// generation round trip; failures degrade to the Unclassified sentinel so a
// bad reply never aborts the pipeline. Successful classifications feed the
// level2→level3 vocabulary back into the preference store.
type Agent struct {
	gen   domain.Generator
	store domain.PreferenceStore
	log   *zap.Logger
}

// New creates a classifier over the given generation backend and preference store.
func New(gen domain.Generator, store domain.PreferenceStore, log *zap.Logger) *Agent {
	return &Agent{gen: gen, store: store, log: log}
}

// classifyPrefixRunes bounds how much document text the prompt carries.
const classifyPrefixRunes = 500

// Classify returns the category for the document, or the Unclassified
// sentinel when the backend produces nothing usable.
func (a *Agent) Classify(text, filename string) domain.Category {
	prefs := a.store.Preferences()
	prompt := buildPrompt(text, filename, prefs)

	reply, err := a.gen.Complete(prompt)
	if err != nil {
		a.log.Warn("classification call failed", zap.String("filename", filename), zap.Error(err))
		return domain.Unclassified()
	}
	if strings.TrimSpace(reply) == "" {
		a.log.Warn("empty classification response", zap.String("filename", filename))
		return domain.Unclassified()
	}

	category, ok := parseCategory(reply)
	if !ok {
		a.log.Warn("unparseable classification response",
			zap.String("filename", filename), zap.String("reply", truncateRunes(reply, 150)))
		return domain.Unclassified()
	}

	a.register(category)
	return category
}

func buildPrompt(text, filename string, prefs domain.Preferences) string {
	hierarchy := strings.Join(prefs.CategoryHierarchy, ", ")
	preferred := strings.Join(prefs.PreferredLevel3["Programming Languages"], ", ")
	return fmt.Sprintf(`Please classify the document according to the three-level classification system, output in JSON format:
{
    "level1": "Level 1 category (select from [%s] or add new)",
    "level2": "Level 2 category (e.g., Technology→Programming Languages)",
    "level3": "Level 3 category (more detailed, e.g., Programming Languages→Python)"
}
Document content summary: %s
Document filename: %s
Note: Prioritize using user's commonly used categories (e.g., Level 3 categories for Programming Languages include [%s])
Please ensure all categories are in English.
Please output ONLY the JSON and nothing else.`,
		hierarchy, truncateRunes(text, classifyPrefixRunes), filename, preferred)
}

var objectFragment = regexp.MustCompile(`\{[^{}]*\}`)

// parseCategory decodes the reply into exactly the three required fields.
// On decode failure it makes one permissive recovery attempt: the first
// object-shaped fragment in the raw reply.
func parseCategory(reply string) (domain.Category, bool) {
	cleaned := stripFences(reply)
	var category domain.Category
	if err := json.Unmarshal([]byte(cleaned), &category); err != nil {
		fragment := objectFragment.FindString(cleaned)
		if fragment == "" {
			return domain.Category{}, false
		}
		if err := json.Unmarshal([]byte(fragment), &category); err != nil {
			return domain.Category{}, false
		}
	}
	if category.Level1 == "" || category.Level2 == "" || category.Level3 == "" {
		return domain.Category{}, false
	}
	return category, true
}

// register adds level2→level3 to the preference vocabulary with set
// semantics and persists. A persistence failure does not invalidate the
// classification itself.
func (a *Agent) register(category domain.Category) {
	prefs := a.store.Preferences()
	if prefs.PreferredLevel3 == nil {
		prefs.PreferredLevel3 = map[string][]string{}
	}
	for _, seen := range prefs.PreferredLevel3[category.Level2] {
		if seen == category.Level3 {
			return
		}
	}
	prefs.PreferredLevel3[category.Level2] = append(prefs.PreferredLevel3[category.Level2], category.Level3)
	if err := a.store.UpdatePreferences(prefs); err != nil {
		a.log.Warn("failed to persist preferences", zap.Error(err))
	}
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
