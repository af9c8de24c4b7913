package domain

import "errors"

// Category is a three-level classification path for a document.
// All three levels are non-empty; Unclassified() marks a failed classification.
type Category struct {
	Level1 string `json:"level1"`
	Level2 string `json:"level2"`
	Level3 string `json:"level3"`
}

// Unclassified returns the sentinel category standing for "could not classify".
func Unclassified() Category {
	return Category{Level1: "Unclassified", Level2: "Unclassified", Level3: "Unclassified"}
}

// IsUnclassified reports whether any level carries the sentinel value.
func (c Category) IsUnclassified() bool {
	return c.Level1 == "Unclassified" || c.Level2 == "Unclassified" || c.Level3 == "Unclassified"
}

// Path renders the category as "level1→level2→level3".
func (c Category) Path() string {
	return c.Level1 + "→" + c.Level2 + "→" + c.Level3
}

// Sentinel extraction values for failed generation. Stored as singleton lists.
const (
	NoCoreIdeas = "No core ideas extracted"
	NoKeywords  = "No keywords extracted"
)

// DocumentRecord is one processed document in the knowledge base.
// Records are append-only; only Category and ProcessedTime may change,
// and only through reclassification.
type DocumentRecord struct {
	ID            string   `json:"id"`
	Filename      string   `json:"filename"`
	Path          string   `json:"path"`
	Category      Category `json:"category"`
	CoreIdeas     []string `json:"core_ideas"`
	Keywords      []string `json:"keywords"`
	RelatedDocs   []string `json:"related_docs"`
	ProcessedTime string   `json:"processed_time"`
}

// Preferences is the user's learned category vocabulary.
// CategoryHierarchy only grows; PreferredLevel3 maps level2 names to the
// level3 values seen under them, with set semantics.
type Preferences struct {
	CategoryHierarchy []string            `json:"category_hierarchy"`
	PreferredLevel3   map[string][]string `json:"preferred_level3"`
}

// SessionStatus tracks ingestion progress across runs.
type SessionStatus struct {
	LastProcessed  string `json:"last_processed"`
	TotalProcessed int    `json:"total_processed"`
}

// Extraction is the per-document output of the extractor.
type Extraction struct {
	CoreIdeas   []string `json:"core_ideas"`
	Keywords    []string `json:"keywords"`
	RelatedDocs []string `json:"related_docs"`
}

// Query types accepted by the knowledge base search engine.
const (
	QueryCategory = "category"
	QueryKeyword  = "keyword"
	QueryRelated  = "related"
)

var (
	// ErrUnsupportedFormat means the parser has no strategy for the file extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrNotFound means the requested filename is not in the knowledge base.
	ErrNotFound = errors.New("document not found")
	// ErrNoResults means a search matched no documents.
	ErrNoResults = errors.New("no matching documents")
	// ErrUnsupportedQuery means the search type is not category/keyword/related.
	ErrUnsupportedQuery = errors.New("unsupported search type")
)

// Parser converts a file into normalized plain text.
// Empty output is legal; callers must tolerate it.
type Parser interface {
	Parse(path string) (string, error)
}

// Generator is the text-generation capability. An empty completion means
// the backend produced no text; callers degrade to sentinels, not errors.
type Generator interface {
	Name() string
	Complete(prompt string) (string, error)
}

// PreferenceStore is durable user preference and session state.
// Every mutation persists before returning.
type PreferenceStore interface {
	Preferences() Preferences
	Session() SessionStatus
	UpdatePreferences(prefs Preferences) error
	UpdateSession(filename string) error
}

// Classifier assigns a three-level category to document text.
type Classifier interface {
	Classify(text, filename string) Category
}

// Extractor derives core ideas, keywords and related-document links.
type Extractor interface {
	Extract(text string, processed []DocumentRecord) Extraction
}
