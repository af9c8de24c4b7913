package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	readability "github.com/go-shiori/go-readability"

	"kbase/internal/domain"
)

// FileParser converts supported files into normalized plain text.
// Supported extensions: .txt, .md, .html, .htm. The final output may be
// empty; downstream stages treat empty text as legal input.
type FileParser struct {
	converter *md.Converter
}

// New creates a parser with an HTML-to-markdown converter for web documents.
func New() *FileParser {
	return &FileParser{converter: md.NewConverter("", true, nil)}
}

// Parse dispatches on the file extension and returns cleaned text.
// Unknown extensions fail with domain.ErrUnsupportedFormat.
func (p *FileParser) Parse(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md":
		return p.parsePlain(path)
	case ".html", ".htm":
		return p.parseHTML(path)
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ext)
	}
}

func (p *FileParser) parsePlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return cleanText(string(data)), nil
}

// parseHTML converts markup to markdown text first; when that comes back
// near-empty it retries with a readability extraction before giving up.
func (p *FileParser) parseHTML(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := ""
	if converted, err := p.converter.ConvertString(string(data)); err == nil {
		text = cleanText(converted)
	}
	if len([]rune(text)) < 10 {
		article, err := readability.FromReader(strings.NewReader(string(data)), nil)
		if err == nil {
			if alt := cleanText(article.TextContent); alt != "" {
				return alt, nil
			}
		}
	}
	return text, nil
}

var (
	newlineRuns = regexp.MustCompile(`\n+`)
	// Allow-list: word characters (any script), CJK ideographs, and a fixed
	// punctuation set.
	disallowed     = regexp.MustCompile(`[^\p{L}\p{N}_\s\x{4e00}-\x{9fa5}，。！？；："'()\[\]{}\-.,;:!?/@#$%^&*+=]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

func cleanText(text string) string {
	text = newlineRuns.ReplaceAllString(text, "\n")
	text = disallowed.ReplaceAllString(text, "")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
