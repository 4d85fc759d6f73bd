// Package extract pulls structured fields out of a block's lines: title,
// organization, date range, location, description and skills, each with a
// local confidence score. Extraction is total: a field that cannot be found
// is simply absent, and a failure in one field never prevents the others.
package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/cvsift/pkg/cvsift/block"
	"github.com/cognicore/cvsift/pkg/cvsift/lexicon"
)

// Extractor finds fields in blocks. Construct once per process with a lexicon
// and share read-only; all per-call state lives on the block.
type Extractor struct {
	lex *lexicon.Lexicon

	titlePatterns []*regexp.Regexp
	orgPatterns   []orgPattern
	datePatterns  []*regexp.Regexp
	dateOnlyRes   []*regexp.Regexp
	locationRes   []*regexp.Regexp
	bulletRe      *regexp.Regexp

	monthRe       *regexp.Regexp
	rangeRe       *regexp.Regexp
	ongoingRe     *regexp.Regexp
	legalRe       *regexp.Regexp
	institutionRe *regexp.Regexp
	properNounRe  *regexp.Regexp
	numericRe     *regexp.Regexp
}

// orgPattern pairs an organization regexp with the evidence bonus it implies.
type orgPattern struct {
	re   *regexp.Regexp
	kind string // "legal", "institution", "public", "business", "casing"
}

// New builds an extractor from the given lexicon. A nil lexicon falls back to
// the built-in defaults.
func New(lex *lexicon.Lexicon) *Extractor {
	if lex == nil {
		lex = lexicon.Default()
	}

	monthAlt := altGroup(lex.MonthNames)
	cityAlt := altGroup(lex.Cities)

	return &Extractor{
		lex: lex,

		titlePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:professeur|enseignant|maître de conférences|chargé de cours)(?:\s+(?:de|en|d'))?\s+[^,\n]+`),
			regexp.MustCompile(`(?i)(?:directeur|chef|manager|responsable|coordinateur)(?:\s+(?:de|du|des|d'))?\s+[^,\n]+`),
			regexp.MustCompile(`(?i)(?:développeur|developpeur|developer|ingénieur|ingenieur|engineer|architecte|architect)\s+[^,\n]+`),
			regexp.MustCompile(`(?i)(?:consultant|analyste|analyst|technicien)(?:\s+(?:en|sur))?\s+[^,\n]+`),
			regexp.MustCompile(`(?i)(?:stagiaire|stage|alternant|alternance|apprenti)\s+[^,\n]+`),
			regexp.MustCompile(`(?i)(?:assistant|adjoint)\s+[^,\n]+`),
			regexp.MustCompile(`^([^•\-–|@\n]{3,40})\s*[-–|@]\s*[^•\-–|@\n]{3,40}$`),
			regexp.MustCompile(`^\s*[A-Z][a-zA-Z\s]{2,30}(?:eur|ant|ien|ste|tor|ger)(?:\s|$)`),
		},

		orgPatterns: []orgPattern{
			{regexp.MustCompile(`(?i)[A-Za-zÀ-ÿ][A-Za-zÀ-ÿ&'. -]*\s(?:SAS|SARL|SA|EURL|SCI|Inc|Corp|Corporation|Ltd|LLC|GmbH)\b`), "legal"},
			{regexp.MustCompile(`(?i)(?:Université|École|Ecole|Lycée|Institut|College|University)\s+[A-Za-zÀ-ÿ'. -]+`), "institution"},
			{regexp.MustCompile(`(?i)[A-Za-zÀ-ÿ'. -]+\s+(?:Université|University|College|Institute)`), "institution"},
			{regexp.MustCompile(`\b(?:CNRS|INSERM|CEA|INRA|CNAM|EDF|RATP|SNCF|INRIA|APHP)\b[A-Za-zÀ-ÿ ]*`), "public"},
			{regexp.MustCompile(`(?i)[A-Za-zÀ-ÿ]+(?:\s+[A-Za-zÀ-ÿ]+)*\s+(?:Consulting|Technologies|Solutions|Services|Systems|Group|Groupe)`), "business"},
			{regexp.MustCompile(`\b[A-Z][a-zA-ZÀ-ÿ]*(?:\s+[A-Z][a-zA-ZÀ-ÿ]*){1,3}\b`), "casing"},
		},

		datePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:` + monthAlt + `)\.?\s+\d{4}\s*[-–—]\s*(?:` + monthAlt + `)\.?\s+\d{4}`),
			regexp.MustCompile(`(?i)(?:` + monthAlt + `)\.?\s+\d{4}`),
			regexp.MustCompile(`\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\s*[-–—]\s*\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}`),
			regexp.MustCompile(`\d{1,2}[/\-.]\d{4}\s*[-–—]\s*\d{1,2}[/\-.]\d{4}`),
			regexp.MustCompile(`\d{4}\s*[-–—]\s*\d{4}`),
			regexp.MustCompile(`\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}`),
			regexp.MustCompile(`\d{1,2}[/\-.]\d{4}`),
			regexp.MustCompile(`(?i)(?:depuis|jusqu'à|à\s+ce\s+jour|actuellement|en\s+cours|since|until|present|ongoing|current)`),
			regexp.MustCompile(`\b\d{4}\b`),
		},

		dateOnlyRes: []*regexp.Regexp{
			regexp.MustCompile(`^\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}$`),
			regexp.MustCompile(`^\d{4}$`),
			regexp.MustCompile(`^\d{4}\s*[-–—]\s*\d{4}$`),
			regexp.MustCompile(`(?i)^(?:` + monthAlt + `)\.?\s+\d{4}$`),
			regexp.MustCompile(`(?i)^(?:` + monthAlt + `)\.?\s+\d{4}\s*[-–—]\s*(?:` + monthAlt + `)\.?\s+\d{4}$`),
		},

		locationRes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:^|[^\p{L}])(` + cityAlt + `)(?:[^\p{L}]|$)`),
			regexp.MustCompile(`\b\d{5}\s+[A-Za-zÀ-ÿ' -]+`),
		},

		bulletRe: regexp.MustCompile(`[•\-–*]`),

		monthRe:       regexp.MustCompile(`(?i)(?:` + monthAlt + `)\.?\s+\d{4}`),
		rangeRe:       regexp.MustCompile(`\d{4}.*[-–—].*\d{4}`),
		ongoingRe:     regexp.MustCompile(`(?i)(?:depuis|à\s+ce\s+jour|actuellement|en\s+cours|since|present|ongoing|current)`),
		legalRe:       regexp.MustCompile(`(?i)\b(?:sas|sarl|sa|eurl|sci|inc|corp|corporation|ltd|llc|gmbh)\b`),
		institutionRe: regexp.MustCompile(`(?i)\b(?:université|universite|école|ecole|college|university|institut|consulting|technologies|solutions|services)\b`),
		properNounRe:  regexp.MustCompile(`^[A-Z][a-zA-ZÀ-ÿ]+(?:\s+[A-Z][a-zA-ZÀ-ÿ]+)*`),
		numericRe:     regexp.MustCompile(`^\d+$`),
	}
}

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

// Ensure runs extraction if the block has not been extracted yet. Extraction
// is idempotent, so callers may invoke this lazily without coordination.
func (e *Extractor) Ensure(b *block.Block) {
	if _, ok := b.Element(block.Title); ok {
		return
	}
	if len(b.Elements) > 0 {
		return
	}
	e.Extract(b)
}

// Extract populates the block's element and confidence maps with every field
// it can find and returns the extracted fields. Fields that cannot be found
// are left absent; an empty string is never inserted.
func (e *Extractor) Extract(b *block.Block) map[block.FieldKind]block.ExtractedField {
	out := make(map[block.FieldKind]block.ExtractedField)

	fields := []struct {
		kind block.FieldKind
		fn   func(*block.Block) (block.ExtractedField, bool)
	}{
		{block.Title, e.extractTitle},
		{block.Organization, e.extractOrganization},
		{block.Dates, e.extractDates},
		{block.Location, e.extractLocation},
		{block.Description, e.extractDescription},
		{block.Skills, e.extractSkills},
	}

	for _, f := range fields {
		field, ok := safeField(f.fn, b)
		if !ok || strings.TrimSpace(field.Content) == "" {
			continue
		}
		out[f.kind] = field
		b.SetField(field)
	}

	return out
}

// safeField isolates one field's extraction: a panic inside a field function
// converts to field absence instead of aborting the remaining fields.
func safeField(fn func(*block.Block) (block.ExtractedField, bool), b *block.Block) (field block.ExtractedField, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return fn(b)
}

func (e *Extractor) extractTitle(b *block.Block) (block.ExtractedField, bool) {
	var best block.ExtractedField
	bestConf := 0.0

	for lineIdx, line := range b.Lines {
		trimmed := strings.TrimSpace(line)
		if utf8.RuneCountInString(trimmed) < 3 {
			continue
		}

		for _, p := range e.titlePatterns {
			loc := p.FindStringIndex(line)
			if loc == nil {
				continue
			}
			text := strings.TrimSpace(line[loc[0]:loc[1]])
			n := utf8.RuneCountInString(text)
			if n < 3 || n > 100 {
				continue
			}

			conf := e.titleConfidence(text, b)
			if conf > bestConf {
				best = block.ExtractedField{
					Kind:       block.Title,
					Content:    text,
					Confidence: conf,
					LineIdx:    lineIdx,
					SpanStart:  loc[0],
					SpanEnd:    loc[1],
				}
				bestConf = conf
			}
		}
	}

	// Heuristic fallback when no structural pattern scored: a short line with
	// at least one professional keyword is still a plausible title.
	if bestConf < 0.3 {
		if f, ok := e.titleHeuristic(b); ok && f.Confidence > bestConf {
			return f, true
		}
	}

	return best, bestConf > 0
}

func (e *Extractor) titleConfidence(title string, b *block.Block) float64 {
	conf := 0.5
	lower := strings.ToLower(title)

	hits := lexicon.CountSubstrings(lower, e.lex.ProfessionalKeywords)
	conf += minF(0.3, float64(hits)*0.1)

	n := utf8.RuneCountInString(title)
	if n >= 10 && n <= 50 {
		conf += 0.1
	}

	// Titles that open with digits are usually dates that leaked in.
	prefix := title
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}
	for _, r := range prefix {
		if unicode.IsDigit(r) {
			conf -= 0.2
			break
		}
	}

	ctxHits := lexicon.CountSubstrings(b.Text(), []string{"mission", "projet", "équipe", "client", "objectif"})
	conf += minF(0.2, float64(ctxHits)*0.05)

	return clamp01(conf)
}

func (e *Extractor) titleHeuristic(b *block.Block) (block.ExtractedField, bool) {
	for lineIdx, line := range b.Lines {
		trimmed := strings.TrimSpace(line)
		n := utf8.RuneCountInString(trimmed)
		if n < 5 || n > 50 {
			continue
		}
		hits := lexicon.CountSubstrings(trimmed, e.lex.ProfessionalKeywords)
		if hits >= 1 {
			return block.ExtractedField{
				Kind:       block.Title,
				Content:    trimmed,
				Confidence: clamp01(0.4 + float64(hits)*0.1),
				LineIdx:    lineIdx,
			}, true
		}
	}
	return block.ExtractedField{}, false
}

func (e *Extractor) extractOrganization(b *block.Block) (block.ExtractedField, bool) {
	var best block.ExtractedField
	bestConf := 0.0

	for lineIdx, line := range b.Lines {
		if utf8.RuneCountInString(strings.TrimSpace(line)) < 2 {
			continue
		}

		for _, p := range e.orgPatterns {
			loc := p.re.FindStringIndex(line)
			if loc == nil {
				continue
			}
			text := strings.TrimSpace(line[loc[0]:loc[1]])
			n := utf8.RuneCountInString(text)
			if n < 2 || n > 100 {
				continue
			}

			conf := e.orgConfidence(text)
			if conf > bestConf {
				best = block.ExtractedField{
					Kind:       block.Organization,
					Content:    text,
					Confidence: conf,
					LineIdx:    lineIdx,
					SpanStart:  loc[0],
					SpanEnd:    loc[1],
				}
				bestConf = conf
			}
		}
	}

	return best, bestConf > 0
}

func (e *Extractor) orgConfidence(org string) float64 {
	conf := 0.4

	if e.legalRe.MatchString(org) {
		conf += 0.3
	}
	if e.institutionRe.MatchString(org) {
		conf += 0.2
	}
	if e.properNounRe.MatchString(org) {
		conf += 0.1
	}
	if e.numericRe.MatchString(org) || utf8.RuneCountInString(org) < 3 {
		conf -= 0.3
	}

	return clamp01(conf)
}

func (e *Extractor) extractDates(b *block.Block) (block.ExtractedField, bool) {
	type match struct {
		field block.ExtractedField
	}
	var matches []match

	for lineIdx, line := range b.Lines {
		// Track spans already covered on this line so the bare-year pattern
		// does not re-report the year inside "Mars 2020".
		var covered [][2]int
		for _, p := range e.datePatterns {
			for _, loc := range p.FindAllStringIndex(line, -1) {
				if overlaps(covered, loc[0], loc[1]) {
					continue
				}
				covered = append(covered, [2]int{loc[0], loc[1]})
				text := strings.TrimSpace(line[loc[0]:loc[1]])
				matches = append(matches, match{block.ExtractedField{
					Kind:       block.Dates,
					Content:    text,
					Confidence: e.dateConfidence(text),
					LineIdx:    lineIdx,
					SpanStart:  loc[0],
					SpanEnd:    loc[1],
				}})
			}
		}
	}

	if len(matches) == 0 {
		return block.ExtractedField{}, false
	}

	best := matches[0].field
	for _, m := range matches[1:] {
		if m.field.Confidence > best.Confidence {
			best = m.field
		}
	}

	// Several matches on the best line form one combined date field
	// ("Jan 2020" + "depuis" style layouts).
	var sameLine []string
	for _, m := range matches {
		if m.field.LineIdx == best.LineIdx {
			sameLine = append(sameLine, m.field.Content)
		}
	}
	if len(sameLine) > 1 {
		best.Content = strings.Join(sameLine, " ")
		best.Confidence = e.dateConfidence(best.Content)
	}

	return best, true
}

func overlaps(covered [][2]int, start, end int) bool {
	for _, c := range covered {
		if start < c[1] && end > c[0] {
			return true
		}
	}
	return false
}

func (e *Extractor) dateConfidence(date string) float64 {
	conf := 0.6
	if e.monthRe.MatchString(date) {
		conf += 0.2
	}
	if e.rangeRe.MatchString(date) {
		conf += 0.2
	}
	if e.ongoingRe.MatchString(date) {
		conf += 0.1
	}
	return clamp01(conf)
}

func (e *Extractor) extractLocation(b *block.Block) (block.ExtractedField, bool) {
	for lineIdx, line := range b.Lines {
		for _, p := range e.locationRes {
			loc := p.FindStringIndex(line)
			if loc == nil {
				continue
			}
			text := strings.Trim(line[loc[0]:loc[1]], ",;() \t")
			if text == "" {
				continue
			}
			return block.ExtractedField{
				Kind:       block.Location,
				Content:    text,
				Confidence: 0.7,
				LineIdx:    lineIdx,
				SpanStart:  loc[0],
				SpanEnd:    loc[1],
			}, true
		}
	}
	return block.ExtractedField{}, false
}

func (e *Extractor) extractDescription(b *block.Block) (block.ExtractedField, bool) {
	var kept []string

	for _, line := range b.Lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if e.looksLikeTitleOrOrg(trimmed) {
			continue
		}
		if e.isDateOnly(trimmed) {
			continue
		}
		if utf8.RuneCountInString(trimmed) >= 10 {
			kept = append(kept, trimmed)
		}
	}

	if len(kept) == 0 {
		return block.ExtractedField{}, false
	}

	content := strings.Join(kept, " ")
	return block.ExtractedField{
		Kind:       block.Description,
		Content:    content,
		Confidence: e.descriptionConfidence(content),
		LineIdx:    0,
	}, true
}

func (e *Extractor) descriptionConfidence(desc string) float64 {
	conf := 0.3

	words := len(strings.Fields(desc))
	switch {
	case words >= 5 && words <= 100:
		conf += 0.3
	case words > 100:
		conf += 0.2
	}

	verbs := lexicon.CountSubstrings(desc, e.lex.ActionVerbs)
	conf += minF(0.3, float64(verbs)*0.05)

	if e.bulletRe.MatchString(desc) {
		conf += 0.1
	}

	return clamp01(conf)
}

func (e *Extractor) extractSkills(b *block.Block) (block.ExtractedField, bool) {
	text := b.Text()
	var found []string
	seen := make(map[string]struct{})

	for _, kw := range e.lex.TechnologyKeywords {
		if !containsToken(text, kw) {
			continue
		}
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		found = append(found, kw)
	}

	if len(found) == 0 {
		return block.ExtractedField{}, false
	}

	return block.ExtractedField{
		Kind:       block.Skills,
		Content:    strings.Join(found, ", "),
		Confidence: 0.8,
		LineIdx:    0,
	}, true
}

// containsToken reports whether kw occurs in text delimited by non-alphanumeric
// characters, so "Go" does not match inside "Google".
func containsToken(text, kw string) bool {
	lowerText := strings.ToLower(text)
	lowerKw := strings.ToLower(kw)
	idx := 0
	for {
		i := strings.Index(lowerText[idx:], lowerKw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(lowerKw)
		beforeOK := start == 0 || !isWordByte(lowerText[start-1])
		afterOK := end == len(lowerText) || !isWordByte(lowerText[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func (e *Extractor) looksLikeTitleOrOrg(line string) bool {
	if utf8.RuneCountInString(line) <= 30 && isAllUpper(line) {
		return true
	}
	for _, p := range e.titlePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	for _, p := range e.orgPatterns {
		if p.kind == "casing" {
			// The proper-noun heuristic is too broad to disqualify
			// description lines.
			continue
		}
		if p.re.MatchString(line) {
			return true
		}
	}
	return false
}

func (e *Extractor) isDateOnly(line string) bool {
	for _, p := range e.dateOnlyRes {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

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

// Link ties a title to an organization and scores the strength of that link:
// the average of the two field confidences, plus domain coherence, minus a
// per-line distance penalty, clamped to [0,1].
func (e *Extractor) Link(title, org block.ExtractedField, b *block.Block) (string, string, float64) {
	if title.Content == "" || org.Content == "" {
		return "", "", 0
	}

	dist := title.LineIdx - org.LineIdx
	if dist < 0 {
		dist = -dist
	}
	distancePenalty := minF(0.3, float64(dist)*0.1)

	avg := (title.Confidence + org.Confidence) / 2
	coherence := contextCoherence(title.Content, org.Content)

	conf := clamp01(avg + coherence - distancePenalty)
	return title.Content, org.Content, conf
}

// contextCoherence rewards title/organization pairs from the same domain:
// teaching roles at educational institutions, technology roles at technology
// companies, plus shared vocabulary between the two strings.
func contextCoherence(title, org string) float64 {
	coherence := 0.0
	titleLower := strings.ToLower(title)
	orgLower := strings.ToLower(org)

	teaching := strings.Contains(titleLower, "professeur") || strings.Contains(titleLower, "enseignant") ||
		strings.Contains(titleLower, "teacher") || strings.Contains(titleLower, "lecturer")
	eduOrg := lexicon.CountSubstrings(orgLower, []string{"université", "universite", "école", "ecole", "college", "institut", "university"}) > 0
	if teaching && eduOrg {
		coherence += 0.3
	}

	techTitle := lexicon.CountSubstrings(titleLower, []string{"développeur", "developpeur", "developer", "engineer", "ingénieur", "tech", "data"}) > 0
	techOrg := lexicon.CountSubstrings(orgLower, []string{"technologies", "solutions", "consulting", "corp", "software"}) > 0
	if techTitle && techOrg {
		coherence += 0.2
	}

	titleWords := lexicon.LowerSet(strings.Fields(titleLower))
	common := 0
	for _, w := range strings.Fields(orgLower) {
		if _, ok := titleWords[w]; ok {
			common++
		}
	}
	if common > 0 {
		coherence += minF(0.2, float64(common)*0.05)
	}

	return coherence
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
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
