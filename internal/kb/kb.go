package kb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"kbase/internal/domain"
)

// Base is the durable collection of processed-document records plus a
// snapshot of the user preferences. Documents keep insertion order, which is
// processing order; they are never reordered or deleted.
type Base struct {
	path      string
	documents []domain.DocumentRecord
	prefs     domain.Preferences
}

type fileState struct {
	Documents       []domain.DocumentRecord `json:"documents"`
	UserPreferences domain.Preferences      `json:"user_preferences"`
}

// Load reads the knowledge base from path. A missing file yields an empty
// base seeded with the given preference snapshot; a malformed file is an error.
func Load(path string, prefs domain.Preferences) (*Base, error) {
	b := &Base{path: path, prefs: prefs}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}
		return nil, err
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("malformed knowledge base %s: %w", path, err)
	}
	b.documents = state.Documents
	b.prefs = state.UserPreferences
	return b, nil
}

// Documents returns the records in knowledge base order.
func (b *Base) Documents() []domain.DocumentRecord { return b.documents }

// Has reports whether a record with the given filename already exists.
func (b *Base) Has(filename string) bool {
	for _, doc := range b.documents {
		if doc.Filename == filename {
			return true
		}
	}
	return false
}

// FindByFilename returns the first record with the given filename.
func (b *Base) FindByFilename(filename string) (domain.DocumentRecord, error) {
	for _, doc := range b.documents {
		if doc.Filename == filename {
			return doc, nil
		}
	}
	return domain.DocumentRecord{}, fmt.Errorf("%w: %s", domain.ErrNotFound, filename)
}

// Append adds a new record at the end of the collection.
func (b *Base) Append(record domain.DocumentRecord) {
	b.documents = append(b.documents, record)
}

// NextID allocates a short document id unique within this base.
func (b *Base) NextID() string {
	for {
		id := "doc_" + uuid.NewString()[:8]
		if !b.hasID(id) {
			return id
		}
	}
}

func (b *Base) hasID(id string) bool {
	for _, doc := range b.documents {
		if doc.ID == id {
			return true
		}
	}
	return false
}

// UpdateCategory overwrites category and processed time on the first record
// with the given filename. Everything else on the record stays untouched.
func (b *Base) UpdateCategory(filename string, category domain.Category, processedTime string) error {
	for i := range b.documents {
		if b.documents[i].Filename == filename {
			b.documents[i].Category = category
			b.documents[i].ProcessedTime = processedTime
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrNotFound, filename)
}

// Search returns records matching the query in knowledge base order.
// Supported types: category (substring over the three levels), keyword
// (substring over core ideas first, then keywords), related (exact id
// membership). No matches yield domain.ErrNoResults; any other type yields
// domain.ErrUnsupportedQuery.
func (b *Base) Search(qtype, value string) ([]domain.DocumentRecord, error) {
	var match func(domain.DocumentRecord) bool
	switch qtype {
	case domain.QueryCategory:
		match = func(doc domain.DocumentRecord) bool {
			return strings.Contains(doc.Category.Level1, value) ||
				strings.Contains(doc.Category.Level2, value) ||
				strings.Contains(doc.Category.Level3, value)
		}
	case domain.QueryKeyword:
		match = func(doc domain.DocumentRecord) bool {
			for _, idea := range doc.CoreIdeas {
				if strings.Contains(idea, value) {
					return true
				}
			}
			for _, keyword := range doc.Keywords {
				if strings.Contains(keyword, value) {
					return true
				}
			}
			return false
		}
	case domain.QueryRelated:
		match = func(doc domain.DocumentRecord) bool {
			for _, id := range doc.RelatedDocs {
				if id == value {
					return true
				}
			}
			return false
		}
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedQuery, qtype)
	}

	var results []domain.DocumentRecord
	for _, doc := range b.documents {
		if match(doc) {
			results = append(results, doc)
		}
	}
	if len(results) == 0 {
		return nil, domain.ErrNoResults
	}
	return results, nil
}

// Save refreshes the preference snapshot and writes the whole base to disk.
func (b *Base) Save(prefs domain.Preferences) error {
	b.prefs = prefs
	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	state := fileState{Documents: b.documents, UserPreferences: b.prefs}
	if state.Documents == nil {
		state.Documents = []domain.DocumentRecord{}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o644)
}
