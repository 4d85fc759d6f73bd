// Package segment splits the ordered line sequence of a résumé into
// contiguous candidate blocks. Boundary detection is heuristic and layered:
// section headers are strong boundaries, indentation shifts that look like a
// new item are medium, and a fresh date pattern is a weak boundary. The
// resulting spans partition the input exactly, modulo blank-line trimming at
// block edges.
package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/cvsift/pkg/cvsift/block"
	"github.com/cognicore/cvsift/pkg/cvsift/lexicon"
)

// BoundaryKind labels why a boundary was recorded.
type BoundaryKind string

const (
	BoundarySectionHeader BoundaryKind = "section_header"
	BoundaryIndentChange  BoundaryKind = "indentation_change"
	BoundaryDatePattern   BoundaryKind = "date_pattern"
)

// Stats summarizes one segmentation pass. Header blocks are excluded from
// downstream candidates but still counted here.
type Stats struct {
	InputLines       int
	NonEmptyLines    int
	TotalBlocks      int
	HeaderBlocks     int
	AvgBlockSize     float64
	BoundariesByKind map[BoundaryKind]int
}

// Segmenter detects block boundaries in résumé text. Construct once with a
// lexicon and share read-only across workers; Segment keeps no mutable state.
type Segmenter struct {
	headers map[string]struct{}

	datePatterns  []*regexp.Regexp
	bulletRe      *regexp.Regexp
	numberedRe    *regexp.Regexp
	roleRe        *regexp.Regexp
	degreeRe      *regexp.Regexp
	decorationRe  *regexp.Regexp
	trailDecorRe  *regexp.Regexp
	alphanumRe    *regexp.Regexp
	indentRe      *regexp.Regexp
	monthYearRe   *regexp.Regexp
	orgIndicators *regexp.Regexp
}

// New builds a segmenter from the given lexicon. A nil lexicon falls back to
// the built-in defaults.
func New(lex *lexicon.Lexicon) *Segmenter {
	if lex == nil {
		lex = lexicon.Default()
	}

	headers := make(map[string]struct{}, len(lex.SectionHeaders))
	for _, h := range lex.SectionHeaders {
		headers[strings.ToLower(h)] = struct{}{}
	}

	monthAlt := altGroup(lex.MonthNames)

	return &Segmenter{
		headers: headers,
		datePatterns: []*regexp.Regexp{
			regexp.MustCompile(`\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}`),
			regexp.MustCompile(`\d{4}\s*[-–—]\s*\d{4}`),
			regexp.MustCompile(`\d{1,2}[/\-.]\d{4}`),
			regexp.MustCompile(`(?i)(?:` + monthAlt + `)\.?\s+\d{4}`),
			regexp.MustCompile(`(?i)(?:depuis|until|jusqu'à|à\s+ce\s+jour|actuellement|en\s+cours|present|ongoing|current)`),
			regexp.MustCompile(`(?:^|\s)\d{4}(?:\s|$)`),
		},
		bulletRe:     regexp.MustCompile(`^\s*[•\-–*▪▫‣⁃]\s+`),
		numberedRe:   regexp.MustCompile(`^\s*(?:\d+[.)]|[a-zA-Z]\))\s+`),
		roleRe:       regexp.MustCompile(`(?i)(?:professeur|enseignant|directeur|manager|chef|responsable|développeur|developer|ingénieur|engineer|analyst|analyste|consultant|technicien|assistant|stagiaire|alternant|lead|senior|junior|intern|stage)`),
		degreeRe:     regexp.MustCompile(`(?i)(?:bachelor|licence|license|master|mba|phd|doctorat|thèse|bac|bts|dut|but|cap|bep|diplôme|degree|certification)`),
		decorationRe: regexp.MustCompile(`^[-=*]{3,}`),
		trailDecorRe: regexp.MustCompile(`[-=*]{3,}$`),
		alphanumRe:   regexp.MustCompile(`[a-zA-Z0-9]`),
		indentRe:     regexp.MustCompile(`^(\s*)`),
		monthYearRe:  regexp.MustCompile(`(?i)(?:` + monthAlt + `)\.?\s+\d{4}`),
		orgIndicators: regexp.MustCompile(`(?i)(?:société|company|entreprise|corp|corporation|inc|ltd|sas|sarl|université|university|école|ecole|lycée|institut|college|consulting|conseil|services|solutions|technologies|group|groupe|holding|agency|agence|bureau|cabinet)`),
	}
}

// altGroup joins terms into a regexp alternation, longest first so longer
// variants win over prefixes.
func altGroup(terms []string) string {
	sorted := make([]string, len(terms))
	copy(sorted, terms)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if len(sorted[j]) > len(sorted[i]) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	quoted := make([]string, 0, len(sorted))
	for _, t := range sorted {
		if t == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	return strings.Join(quoted, "|")
}

// Segment splits lines into blocks. It always succeeds: malformed or empty
// input yields an empty result, and non-UTF8 lines are treated as blank.
func (s *Segmenter) Segment(lines []string) ([]*block.Block, Stats) {
	stats := Stats{
		InputLines:       len(lines),
		BoundariesByKind: make(map[BoundaryKind]int),
	}
	if len(lines) == 0 {
		return nil, stats
	}

	clean := make([]string, len(lines))
	for i, line := range lines {
		if !utf8.ValidString(line) {
			clean[i] = ""
			continue
		}
		clean[i] = strings.TrimRight(line, " \t")
		if strings.TrimSpace(clean[i]) != "" {
			stats.NonEmptyLines++
		}
	}

	boundaries := s.detectBoundaries(clean, &stats)
	blocks := s.buildBlocks(clean, boundaries)

	stats.TotalBlocks = len(blocks)
	total := 0
	for _, b := range blocks {
		total += b.LineCount()
		if b.Category == block.Header {
			stats.HeaderBlocks++
		}
	}
	if len(blocks) > 0 {
		stats.AvgBlockSize = float64(total) / float64(len(blocks))
	}

	return blocks, stats
}

// detectBoundaries returns a sorted, deduplicated list of boundary indices,
// always including 0 and len(lines).
func (s *Segmenter) detectBoundaries(lines []string, stats *Stats) []int {
	seen := map[int]struct{}{0: {}}
	boundaries := []int{0}

	// dateSeen tracks whether the block under construction already contains a
	// dated line. A date only opens a new block when the current one is
	// already dated; the first date in a block belongs to the entry above it
	// (title, organization, then dates is the common layout).
	dateSeen := false

	addIndex := func(i int) {
		if _, ok := seen[i]; !ok {
			seen[i] = struct{}{}
			boundaries = append(boundaries, i)
		}
	}
	add := func(i int, kind BoundaryKind) {
		addIndex(i)
		stats.BoundariesByKind[kind]++
		dateSeen = false
	}

	prevNonBlank := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		blankGap := prevNonBlank >= 0 && i > prevNonBlank+1

		switch {
		case s.IsSectionHeader(line):
			add(i, BoundarySectionHeader)
			// A header is its own block; the section body starts after it.
			addIndex(i + 1)

		case prevNonBlank >= 0 && s.indentShift(lines[prevNonBlank], line) && s.looksLikeNewItem(line):
			add(i, BoundaryIndentChange)

		// A blank gap after a dated entry starts the next entry, provided
		// the line plausibly opens one.
		case blankGap && dateSeen && s.looksLikeNewItem(line):
			add(i, BoundaryIndentChange)

		case prevNonBlank >= 0 && dateSeen && s.containsDate(line) && !s.containsDate(lines[prevNonBlank]):
			add(i, BoundaryDatePattern)
		}

		if s.containsDate(line) {
			dateSeen = true
		}
		prevNonBlank = i
	}

	if _, ok := seen[len(lines)]; !ok {
		boundaries = append(boundaries, len(lines))
	}

	// Insertion order is almost sorted already; normalize anyway.
	for i := 1; i < len(boundaries); i++ {
		for j := i; j > 0 && boundaries[j] < boundaries[j-1]; j-- {
			boundaries[j], boundaries[j-1] = boundaries[j-1], boundaries[j]
		}
	}
	return boundaries
}

// IsSectionHeader reports whether a line delimits a résumé section: a known
// localized header, a short all-caps line, or a decoration rule.
func (s *Segmenter) IsSectionHeader(line string) bool {
	t := strings.TrimSpace(line)
	n := utf8.RuneCountInString(t)
	if n < 3 || n > 50 {
		return false
	}

	low := strings.ToLower(strings.TrimRight(t, " :"))
	if _, ok := s.headers[low]; ok {
		return true
	}
	if _, ok := s.headers[strings.TrimSuffix(low, "s")]; ok {
		return true
	}

	if isAllUpper(t) && len(strings.Fields(t)) <= 3 {
		return true
	}

	return s.decorationRe.MatchString(t) || s.trailDecorRe.MatchString(t)
}

// isAllUpper reports whether the string contains at least one letter and no
// lowercase letters.
func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func (s *Segmenter) indentShift(prev, curr string) bool {
	p := len(s.indentRe.FindString(prev))
	c := len(s.indentRe.FindString(curr))
	d := p - c
	if d < 0 {
		d = -d
	}
	return d >= 2
}

// looksLikeNewItem reports whether a line plausibly starts a new entry:
// a bullet, a role or degree keyword, or a date.
func (s *Segmenter) looksLikeNewItem(line string) bool {
	if s.bulletRe.MatchString(line) || s.numberedRe.MatchString(line) {
		return true
	}
	t := strings.TrimSpace(line)
	if s.roleRe.MatchString(t) || s.degreeRe.MatchString(t) {
		return true
	}
	return s.containsDate(t)
}

func (s *Segmenter) containsDate(line string) bool {
	for _, p := range s.datePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// buildBlocks turns consecutive boundary pairs into blocks, trimming blank
// edge lines (the recorded span shrinks accordingly) and dropping blocks with
// no alphanumeric content. A single-line block matching a section header is
// tagged Header so callers can exclude it from candidates.
func (s *Segmenter) buildBlocks(lines []string, boundaries []int) []*block.Block {
	var blocks []*block.Block

	for i := 0; i+1 < len(boundaries); i++ {
		start, end := boundaries[i], boundaries[i+1]

		for start < end && strings.TrimSpace(lines[start]) == "" {
			start++
		}
		for end > start && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}
		if start >= end {
			continue
		}

		blockLines := make([]string, end-start)
		copy(blockLines, lines[start:end])

		meaningful := false
		for _, l := range blockLines {
			if s.alphanumRe.MatchString(l) {
				meaningful = true
				break
			}
		}
		if !meaningful {
			continue
		}

		b := block.New(blockLines, start, end-1)
		if len(blockLines) == 1 && s.IsSectionHeader(blockLines[0]) {
			b.Category = block.Header
		}
		blocks = append(blocks, b)
	}

	return blocks
}

// CoherenceScores rates the internal consistency of a block, 0 to 1 each.
// Used by the analytics tooling to explain segmentation quality.
type CoherenceScores struct {
	Temporal   float64
	Semantic   float64
	Structural float64
	Overall    float64
}

// Coherence analyzes how well a block hangs together: share of dated lines,
// density of role/organization vocabulary, and indentation consistency.
func (s *Segmenter) Coherence(b *block.Block) CoherenceScores {
	var c CoherenceScores
	if b == nil || b.LineCount() == 0 {
		return c
	}
	n := float64(b.LineCount())

	dated := 0
	semantic := 0
	minIndent, maxIndent := -1, 0
	for _, line := range b.Lines {
		if s.containsDate(line) {
			dated++
		}
		if s.roleRe.MatchString(line) || s.orgIndicators.MatchString(line) {
			semantic++
		}
		ind := len(s.indentRe.FindString(line))
		if minIndent < 0 || ind < minIndent {
			minIndent = ind
		}
		if ind > maxIndent {
			maxIndent = ind
		}
	}

	c.Temporal = clamp01(float64(dated) / n)
	c.Semantic = clamp01(float64(semantic) / n)
	c.Structural = clamp01(1.0 - float64(maxIndent-minIndent)/10.0)
	c.Overall = 0.4*c.Temporal + 0.4*c.Semantic + 0.2*c.Structural
	return c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
