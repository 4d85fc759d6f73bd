// Package block defines the unit of work of the pipeline: a contiguous run of
// résumé lines treated as one candidate entry (one job, one degree, one
// certificate, or noise). Blocks are created by the segmenter, filled in by the
// field extractor, tagged by the classifier, and judged by the gate.
package block

import (
	"regexp"
	"strings"
)

// FieldKind identifies a structured field detected inside a block.
type FieldKind string

const (
	Title        FieldKind = "title"
	Organization FieldKind = "organization"
	Dates        FieldKind = "dates"
	Location     FieldKind = "location"
	Description  FieldKind = "description"
	Skills       FieldKind = "skills"
)

// Category is the provisional classification of a block.
type Category string

const (
	Experience    Category = "experience"
	Education     Category = "education"
	Certification Category = "certification"
	Header        Category = "header"
	Unknown       Category = "unknown"
)

// Block is a contiguous sequence of input lines spanning the document-relative
// index range [StartIdx, EndIdx]. Elements and Confidence are filled in place
// by the extractor; Category is set by the segmenter (headers) or classifier.
// A block is never destroyed mid-pipeline.
type Block struct {
	Lines    []string
	StartIdx int
	EndIdx   int

	Elements   map[FieldKind]string
	Confidence map[FieldKind]float64
	Category   Category
}

// ExtractedField is a field candidate found inside a block, with its local
// confidence and position. It is copied by value into the owning block's
// Elements map and not persisted beyond the pipeline call.
type ExtractedField struct {
	Kind       FieldKind
	Content    string
	Confidence float64
	LineIdx    int
	SpanStart  int
	SpanEnd    int
}

// New creates a block over the given lines and document-relative span.
func New(lines []string, startIdx, endIdx int) *Block {
	return &Block{
		Lines:      lines,
		StartIdx:   startIdx,
		EndIdx:     endIdx,
		Elements:   make(map[FieldKind]string),
		Confidence: make(map[FieldKind]float64),
		Category:   Unknown,
	}
}

// Text returns the raw text of the block, lines joined by newlines.
func (b *Block) Text() string {
	return strings.Join(b.Lines, "\n")
}

// LineCount returns the number of lines in the block.
func (b *Block) LineCount() int {
	return len(b.Lines)
}

// Element returns the detected content for a field kind, if present.
// Absence is the only failure signal for extraction.
func (b *Block) Element(kind FieldKind) (string, bool) {
	v, ok := b.Elements[kind]
	return v, ok
}

// SetField records an extracted field on the block, overwriting any previous
// value for the same kind.
func (b *Block) SetField(f ExtractedField) {
	if b.Elements == nil {
		b.Elements = make(map[FieldKind]string)
	}
	if b.Confidence == nil {
		b.Confidence = make(map[FieldKind]float64)
	}
	b.Elements[f.Kind] = f.Content
	b.Confidence[f.Kind] = f.Confidence
}

var (
	emailRe    = regexp.MustCompile(`\S+@\S+`)
	digitRunRe = regexp.MustCompile(`\d{4,}`)
)

// Preview returns a diagnostics-safe preview of the block: newlines collapsed,
// email-like tokens and long digit runs masked, truncated to maxChars.
// Full PII redaction is the caller's concern; this only keeps obvious
// identifiers out of log lines.
func (b *Block) Preview(maxChars int) string {
	if maxChars <= 0 {
		maxChars = 100
	}
	s := strings.ReplaceAll(b.Text(), "\n", " ")
	s = emailRe.ReplaceAllString(s, "***@***")
	s = digitRunRe.ReplaceAllString(s, "####")
	runes := []rune(s)
	if len(runes) > maxChars {
		return string(runes[:maxChars])
	}
	return s
}
