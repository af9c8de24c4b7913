package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"kbase/internal/domain"
	"kbase/internal/kb"
)

// maxExtractAttempts bounds how often the extractor is re-invoked for one
// document before the last result is accepted as-is.
const maxExtractAttempts = 3

const timeLayout = "2006-01-02 15:04:05"

// Service orchestrates the ingestion pipeline and exposes the knowledge base
// operations behind the interactive menu. Processing is strictly sequential:
// one document finishes before the next begins.
type Service struct {
	parser     domain.Parser
	classifier domain.Classifier
	extractor  domain.Extractor
	prefs      domain.PreferenceStore
	base       *kb.Base
	log        *zap.Logger
}

// New wires the pipeline components together.
func New(parser domain.Parser, classifier domain.Classifier, extractor domain.Extractor,
	prefs domain.PreferenceStore, base *kb.Base, log *zap.Logger) *Service {
	return &Service{
		parser:     parser,
		classifier: classifier,
		extractor:  extractor,
		prefs:      prefs,
		base:       base,
		log:        log,
	}
}

// ProcessDocuments ingests every file in inputDir whose filename is not yet
// in the knowledge base, in sorted name order, then persists the base once.
// It returns how many new records were added. Per-file failures are logged
// and skipped; they never abort the batch.
func (s *Service) ProcessDocuments(inputDir string) (int, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return 0, fmt.Errorf("reading input dir: %w", err)
	}
	var filenames []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			filenames = append(filenames, entry.Name())
			continue
		}
		// Symlinked documents are candidates too, as long as they resolve
		// to a regular file.
		if entry.Type()&os.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(inputDir, entry.Name()))
			if err == nil && info.Mode().IsRegular() {
				filenames = append(filenames, entry.Name())
			}
		}
	}
	sort.Strings(filenames)

	added := 0
	for _, filename := range filenames {
		if s.base.Has(filename) {
			s.log.Info("document already processed, skipping", zap.String("filename", filename))
			continue
		}
		path := filepath.Join(inputDir, filename)
		s.log.Info("processing document", zap.String("filename", filename))

		text, err := s.parser.Parse(path)
		if err != nil {
			s.log.Warn("parsing failed, skipping document", zap.String("filename", filename), zap.Error(err))
			continue
		}
		s.log.Info("parsing completed", zap.String("filename", filename), zap.Int("chars", len([]rune(text))))

		// Classification happens exactly once per document, even when
		// extraction is retried.
		category := s.classifier.Classify(text, filename)

		extracted := Attempt(func() domain.Extraction {
			return s.extractor.Extract(text, s.base.Documents())
		}, maxExtractAttempts, func(e domain.Extraction) bool {
			return resultValid(category, e)
		})

		record := domain.DocumentRecord{
			ID:            s.base.NextID(),
			Filename:      filename,
			Path:          path,
			Category:      category,
			CoreIdeas:     extracted.CoreIdeas,
			Keywords:      extracted.Keywords,
			RelatedDocs:   extracted.RelatedDocs,
			ProcessedTime: time.Now().Format(timeLayout),
		}
		s.base.Append(record)
		added++
		s.log.Info("document recorded",
			zap.String("id", record.ID),
			zap.String("category", category.Path()),
			zap.Int("core_ideas", len(record.CoreIdeas)))

		if err := s.prefs.UpdateSession(filename); err != nil {
			return added, fmt.Errorf("updating session: %w", err)
		}
	}

	// One flush for the whole batch. A crash before this point loses the
	// batch's new records; the next run re-ingests those files.
	if err := s.base.Save(s.prefs.Preferences()); err != nil {
		return added, fmt.Errorf("saving knowledge base: %w", err)
	}
	return added, nil
}

// resultValid is the retry gate: the category must not be the classifier
// sentinel and neither extraction list may be the singleton sentinel.
func resultValid(category domain.Category, extracted domain.Extraction) bool {
	return !category.IsUnclassified() &&
		!isSentinelList(extracted.CoreIdeas, domain.NoCoreIdeas) &&
		!isSentinelList(extracted.Keywords, domain.NoKeywords)
}

// isSentinelList matches only a singleton list containing the sentinel
// phrase; a genuine multi-item result that mentions the phrase passes.
func isSentinelList(list []string, phrase string) bool {
	return len(list) == 1 && strings.Contains(list[0], phrase)
}

// Search queries the knowledge base. See kb.Base.Search for semantics.
func (s *Service) Search(qtype, value string) ([]domain.DocumentRecord, error) {
	return s.base.Search(qtype, value)
}

// Documents returns the current records in knowledge base order.
func (s *Service) Documents() []domain.DocumentRecord {
	return s.base.Documents()
}

// Reclassify re-parses the stored path and runs a fresh classification,
// overwriting only category and processed time. Extraction and relations are
// never recomputed here. The updated base is persisted immediately.
func (s *Service) Reclassify(filename string) (domain.Category, error) {
	record, err := s.base.FindByFilename(filename)
	if err != nil {
		return domain.Category{}, err
	}
	text, err := s.parser.Parse(record.Path)
	if err != nil {
		return domain.Category{}, fmt.Errorf("re-parsing %s: %w", record.Path, err)
	}
	category := s.classifier.Classify(text, filename)
	if err := s.base.UpdateCategory(filename, category, time.Now().Format(timeLayout)); err != nil {
		return domain.Category{}, err
	}
	if err := s.base.Save(s.prefs.Preferences()); err != nil {
		return domain.Category{}, fmt.Errorf("saving knowledge base: %w", err)
	}
	return category, nil
}

// IsNotFound reports whether err is the missing-document lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
