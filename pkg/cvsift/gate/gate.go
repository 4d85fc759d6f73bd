// Package gate is the validation gate in front of the experience list: it
// scores classified blocks, hard-rejects known noise shapes, calibrates a
// confidence, and routes each block to accept, education, certification, or
// reject. Every decision carries its score breakdown and reasoning tokens so
// a rejection can always be explained.
package gate

import (
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cognicore/cvsift/pkg/cvsift/block"
	"github.com/cognicore/cvsift/pkg/cvsift/classify"
	"github.com/cognicore/cvsift/pkg/cvsift/lexicon"
)

// Decision is the gate's routing verdict for one block.
type Decision string

const (
	AcceptAsExperience   Decision = "accept_experience"
	RouteToEducation     Decision = "route_education"
	RouteToCertification Decision = "route_certification"
	RejectAsNoise        Decision = "reject_noise"
)

// Reasoning tokens emitted by the gate. Batch reporting keys off these.
const (
	ReasonHardRejectDateOnlyTitle = "hard_reject_date_only_title"
	ReasonHardRejectAcronym       = "hard_reject_unwhitelisted_acronym"
	ReasonCertificationSignals    = "certification_signals"
	ReasonStrongEducation         = "strong_education_classification"
	ReasonFinalScoreSufficient    = "final_score_sufficient"
	ReasonContextOverride         = "professional_context_override"
	ReasonDateOnlyTitlePenalty    = "date_only_title_penalty"
	ReasonSolidTechOrgBonus       = "solid_tech_organization_bonus"
	ReasonConfidenceTooLow        = "confidence_too_low_after_adjustments"
	ReasonContextOverrideRescue   = "context_override_rescue"
	ReasonInsufficientScore       = "insufficient_score"
)

// Config holds the gate thresholds and calibration constants. Zero values
// are replaced by the defaults, so a partially filled Config is usable.
type Config struct {
	// Routing thresholds.
	FinalScoreAccept   float64 `yaml:"final_score_accept"`
	CertRouteThreshold float64 `yaml:"cert_route_threshold"`
	EduRouteThreshold  float64 `yaml:"edu_route_threshold"`
	MinConfidence      float64 `yaml:"min_confidence"`

	// Confidence calibration.
	DateOnlyTitlePenalty float64 `yaml:"date_only_title_penalty"`
	SolidOrgBonus        float64 `yaml:"solid_org_bonus"`
	ConfidenceCeiling    float64 `yaml:"confidence_ceiling"`
}

// DefaultConfig returns the tuned production thresholds.
func DefaultConfig() Config {
	return Config{
		FinalScoreAccept:     1.0,
		CertRouteThreshold:   1.5,
		EduRouteThreshold:    1.5,
		MinConfidence:        0.3,
		DateOnlyTitlePenalty: 0.45,
		SolidOrgBonus:        0.25,
		ConfidenceCeiling:    0.95,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FinalScoreAccept == 0 {
		c.FinalScoreAccept = d.FinalScoreAccept
	}
	if c.CertRouteThreshold == 0 {
		c.CertRouteThreshold = d.CertRouteThreshold
	}
	if c.EduRouteThreshold == 0 {
		c.EduRouteThreshold = d.EduRouteThreshold
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = d.MinConfidence
	}
	if c.DateOnlyTitlePenalty == 0 {
		c.DateOnlyTitlePenalty = d.DateOnlyTitlePenalty
	}
	if c.SolidOrgBonus == 0 {
		c.SolidOrgBonus = d.SolidOrgBonus
	}
	if c.ConfidenceCeiling == 0 {
		c.ConfidenceCeiling = d.ConfidenceCeiling
	}
	return c
}

// Scores is the composite score breakdown behind a gate decision.
type Scores struct {
	Exp          float64
	Edu          float64
	Cert         float64
	Org          float64
	Date         float64
	TitlePenalty float64
	ContextBonus float64
	Final        float64

	ExpKeywords  int
	EduKeywords  int
	CertKeywords int
}

// TitleOrgLink is the title/organization pair attached to accepted blocks.
type TitleOrgLink struct {
	Title        string
	Organization string
}

// Result is the gate's full verdict for one block.
type Result struct {
	Decision   Decision
	Scores     Scores
	Confidence float64
	Reasoning  []string

	TitleOrgLink      *TitleOrgLink
	HardRejectReasons []string

	Classification classify.Result
}

// Stats tracks gate activity. Counters are atomic so concurrent validation
// can share one gate.
type Stats struct {
	BlocksProcessed       atomic.Int64
	Accepted              atomic.Int64
	RoutedToEducation     atomic.Int64
	RoutedToCertification atomic.Int64
	Rejected              atomic.Int64
	HardRejections        atomic.Int64
	ContextOverrides      atomic.Int64
}

// Snapshot is a point-in-time copy of the gate counters with derived rates.
type Snapshot struct {
	BlocksProcessed       int64
	Accepted              int64
	RoutedToEducation     int64
	RoutedToCertification int64
	Rejected              int64
	HardRejections        int64
	ContextOverrides      int64

	AcceptanceRate    float64
	RejectionRate     float64
	HardRejectionRate float64
}

// Gate validates classified blocks. Safe for concurrent use.
type Gate struct {
	cfg Config
	lex *lexicon.Lexicon
	now func() time.Time

	acronymRe      *regexp.Regexp
	businessOrgRe  *regexp.Regexp
	schoolOrgRes   []*regexp.Regexp
	monthYearRe    *regexp.Regexp
	yearRangeRe    *regexp.Regexp
	ongoingRe      *regexp.Regexp
	yearRe         *regexp.Regexp
	dateOnlyRes    []*regexp.Regexp
	hardDateRes    []*regexp.Regexp
	noiseHeaderRes []*regexp.Regexp

	allowlist map[string]struct{}

	stats Stats
}

// Option adjusts gate construction.
type Option func(*Gate)

// WithClock injects the time source used for date plausibility checks.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New builds a gate with the given config and lexicon. Nil lexicon falls
// back to the defaults; zero config fields take the default thresholds.
func New(cfg Config, lex *lexicon.Lexicon, opts ...Option) *Gate {
	if lex == nil {
		lex = lexicon.Default()
	}

	monthAlt := altGroup(lex.MonthNames)

	g := &Gate{
		cfg: cfg.withDefaults(),
		lex: lex,
		now: time.Now,

		acronymRe:     regexp.MustCompile(`^[A-Z]{2,6}$`),
		businessOrgRe: regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:sas|sarl|sa|inc|corp|ltd|consulting|technologies|solutions|services)(?:[^\p{L}]|$)`),
		schoolOrgRes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:école|ecole|lycée|université|university|faculty|faculté|institut|institute|college)(?:[^\p{L}]|$)`),
			regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:epsaa|ens|insa|polytech|hec|escp|arts\s+et\s+métiers|sciences\s+po)(?:[^\p{L}]|$)`),
		},
		monthYearRe: regexp.MustCompile(`(?i)(?:` + monthAlt + `)\s+\d{4}`),
		yearRangeRe: regexp.MustCompile(`\d{4}\s*[-–—]\s*\d{4}`),
		ongoingRe:   regexp.MustCompile(`(?i)(?:à\s+ce\s+jour|actuellement|en\s+cours|depuis)`),
		yearRe:      regexp.MustCompile(`\b(?:19|20)\d{2}\b`),
		dateOnlyRes: []*regexp.Regexp{
			regexp.MustCompile(`^\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}$`),
			regexp.MustCompile(`^\d{4}$`),
			regexp.MustCompile(`^\d{4}\s*[-–—]\s*\d{4}$`),
			regexp.MustCompile(`(?i)^(?:` + monthAlt + `)\.?\s+\d{4}$`),
			regexp.MustCompile(`(?i)^(?:` + monthAlt + `)\.?\s+\d{4}\s*[-–—]\s*(?:` + monthAlt + `)\.?\s+\d{4}$`),
		},
		hardDateRes: []*regexp.Regexp{
			regexp.MustCompile(`^\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}$`),
			regexp.MustCompile(`^\d{4}$`),
		},
		noiseHeaderRes: compileNoiseHeaders(lex.NoiseHeaders),

		allowlist: upperSet(lex.AcronymAllowlist),
	}

	for _, opt := range opts {
		opt(g)
	}
	return g
}

func upperSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[strings.ToUpper(t)] = struct{}{}
	}
	return set
}

// containsAcronymToken reports whether acr occurs in upper as a whole token,
// so "CEA" matches "INSTITUT CEA SACLAY" but not "OCEANE CONSEIL".
func containsAcronymToken(upper, acr string) bool {
	if acr == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(upper[from:], acr)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(acr)
		if (start == 0 || !isUpperWordByte(upper[start-1])) &&
			(end == len(upper) || !isUpperWordByte(upper[end])) {
			return true
		}
		from = start + 1
	}
}

func isUpperWordByte(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// compileNoiseHeaders turns the lexicon's noise section labels into title
// matchers: the label must open the title and end on a word boundary, so
// "divers" disqualifies "Divers :" but not "diversité".
func compileNoiseHeaders(labels []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		parts := strings.Fields(regexp.QuoteMeta(label))
		res = append(res, regexp.MustCompile(`(?i)^\s*`+strings.Join(parts, `\s+`)+`(?:[^\p{L}\p{N}].*)?$`))
	}
	return res
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

// Validate scores the block and applies the gate rules. The classification
// must already have been computed; validation never mutates the block.
func (g *Gate) Validate(b *block.Block, cls classify.Result) Result {
	g.stats.BlocksProcessed.Add(1)

	title, _ := b.Element(block.Title)
	org, _ := b.Element(block.Organization)
	desc, _ := b.Element(block.Description)
	dates, _ := b.Element(block.Dates)

	scores := g.Score(title, org, desc, dates, cls)
	res := g.apply(title, org, scores, cls)
	res.Classification = cls

	g.recordStats(res)
	return res
}

// Score computes the composite score breakdown for a block's fields.
func (g *Gate) Score(title, org, desc, dates string, cls classify.Result) Scores {
	var s Scores
	fullText := strings.ToLower(title + " " + org + " " + desc)

	s.ExpKeywords = lexicon.CountSubstrings(fullText, g.lex.EmploymentKeywords)
	s.Exp = minF(4.0, float64(s.ExpKeywords)*0.5)

	s.EduKeywords = lexicon.CountSubstrings(fullText, g.lex.EducationKeywords)
	s.Edu = minF(4.0, float64(s.EduKeywords)*0.5)

	s.CertKeywords = lexicon.CountSubstrings(fullText, g.lex.CertificationKeywords)
	s.Cert = minF(4.0, float64(s.CertKeywords)*0.6)

	s.Org = g.orgScore(org)
	s.Date = g.dateScore(dates)
	s.TitlePenalty = g.titlePenalty(title)
	s.ContextBonus = g.contextBonus(fullText, cls)

	penalty := s.TitlePenalty
	if penalty < 0 {
		penalty = 0
	}
	s.Final = s.Exp + s.Org + s.Date + s.ContextBonus - penalty

	return s
}

// orgScore rates organization quality on [0, 2].
func (g *Gate) orgScore(org string) float64 {
	if len(org) < 2 {
		return 0
	}

	score := 0.5

	if g.businessOrgRe.MatchString(org) {
		score += 1.0
	}

	upper := strings.ToUpper(org)
	for acr := range g.allowlist {
		if containsAcronymToken(upper, acr) {
			score += 0.5
			break
		}
	}

	for _, p := range g.schoolOrgRes {
		if p.MatchString(org) {
			score -= 0.3
			break
		}
	}

	n := len(org)
	if n >= 5 && n <= 60 && !isAllDigits(org) {
		score += 0.5
	}

	return clampF(score, 0, 2)
}

// dateScore rates date quality and temporal plausibility on [0, 2].
func (g *Gate) dateScore(dates string) float64 {
	if dates == "" {
		return 0
	}

	score := 1.0

	if g.monthYearRe.MatchString(dates) {
		score += 0.5
	}
	if g.yearRangeRe.MatchString(dates) {
		score += 0.5
	}
	if g.ongoingRe.MatchString(dates) {
		score += 0.3
	}
	if len(strings.TrimSpace(dates)) <= 4 {
		score -= 0.3
	}

	years := g.extractYears(dates)
	if len(years) > 0 {
		currentYear := g.now().Year()

		minYear, maxYear := years[0], years[0]
		future, ancient := false, false
		for _, y := range years {
			if y > currentYear+1 {
				future = true
			}
			if y < currentYear-30 {
				ancient = true
			}
			if y < minYear {
				minYear = y
			}
			if y > maxYear {
				maxYear = y
			}
		}
		if future {
			score -= 0.5
		}
		if ancient {
			score -= 0.2
		}
		if len(years) >= 2 {
			duration := maxYear - minYear
			if duration >= 1 && duration <= 10 {
				score += 0.3
			}
		}
	}

	return clampF(score, 0, 2)
}

func (g *Gate) extractYears(dates string) []int {
	var years []int
	for _, m := range g.yearRe.FindAllString(dates, -1) {
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		years = append(years, y)
	}
	return years
}

// titlePenalty accumulates penalties for title shapes that indicate noise.
// A missing title is itself penalized.
func (g *Gate) titlePenalty(title string) float64 {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return 1.0
	}

	penalty := 0.0

	if g.isNegativeTitle(trimmed) {
		penalty += 2.0
	}

	if g.acronymRe.MatchString(trimmed) && !g.isAllowlistedAcronym(trimmed) {
		penalty += 1.0
	}

	if len(trimmed) <= 3 {
		penalty += 0.5
	}

	digits := 0
	for _, r := range title {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if n := len([]rune(title)); n > 0 && float64(digits)/float64(n) > 0.3 {
		penalty += 1.0
	}

	return penalty
}

// isNegativeTitle reports a strongly negative title shape: a bare numeric
// date, a noise section header, or an unlisted short acronym. Softer
// date-only shapes ("Mars 2020") are handled by confidence calibration
// instead, so the score breakdown survives for inspection.
func (g *Gate) isNegativeTitle(title string) bool {
	if g.isHardDateTitle(title) {
		return true
	}
	for _, p := range g.noiseHeaderRes {
		if p.MatchString(title) {
			return true
		}
	}
	if g.acronymRe.MatchString(title) && !g.isAllowlistedAcronym(title) {
		return true
	}
	return false
}

func (g *Gate) isAllowlistedAcronym(title string) bool {
	_, ok := g.allowlist[strings.ToUpper(title)]
	return ok
}

// isHardDateTitle reports the unambiguous date-only title shapes: a bare
// year or a fully numeric date.
func (g *Gate) isHardDateTitle(title string) bool {
	for _, p := range g.hardDateRes {
		if p.MatchString(title) {
			return true
		}
	}
	return false
}

// IsDateOnlyToken reports whether the string is nothing but a date: a bare
// year, a numeric date, a year range, or a "Month YYYY" token.
func (g *Gate) IsDateOnlyToken(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	for _, p := range g.dateOnlyRes {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// contextBonus rewards coherent classification context.
func (g *Gate) contextBonus(fullText string, cls classify.Result) float64 {
	bonus := 0.0

	switch {
	case cls.Confidence >= 0.8:
		bonus += 0.5
	case cls.Confidence >= 0.6:
		bonus += 0.3
	}

	if cls.ContextOverride {
		bonus += 1.0
	}

	if cls.ProfessionalSignals >= 2 {
		bonus += 0.5
	}

	verbs := lexicon.CountSubstrings(fullText, g.lex.ActionVerbs)
	bonus += minF(0.5, float64(verbs)*0.1)

	return bonus
}

// apply runs the gate rules in order: hard rejects, certification routing,
// education routing, score-based acceptance with calibration, context
// override rescue, then default rejection.
func (g *Gate) apply(title, org string, scores Scores, cls classify.Result) Result {
	var reasoning []string
	var hardRejects []string

	trimmedTitle := strings.TrimSpace(title)

	// Hard reject 1: the title is a bare numeric date.
	if g.isHardDateTitle(trimmedTitle) {
		hardRejects = append(hardRejects, "title_is_date_only")
		reasoning = append(reasoning, ReasonHardRejectDateOnlyTitle)
	}

	// Hard reject 2: a short unlisted acronym with no employment context.
	if g.acronymRe.MatchString(trimmedTitle) && !g.isAllowlistedAcronym(trimmedTitle) && scores.Exp < 1.0 {
		hardRejects = append(hardRejects, "short_acronym_no_context")
		reasoning = append(reasoning, ReasonHardRejectAcronym)
	}

	if len(hardRejects) > 0 {
		g.stats.HardRejections.Add(1)
		return Result{
			Decision:          RejectAsNoise,
			Scores:            scores,
			Confidence:        0.1,
			Reasoning:         reasoning,
			HardRejectReasons: hardRejects,
		}
	}

	// Routing 1: dominant certification evidence.
	if scores.Cert >= g.cfg.CertRouteThreshold && scores.Cert > maxF(scores.Exp, scores.Edu) {
		reasoning = append(reasoning, ReasonCertificationSignals)
		return Result{
			Decision:   RouteToCertification,
			Scores:     scores,
			Confidence: 0.7 + minF(0.3, scores.Cert*0.1),
			Reasoning:  reasoning,
		}
	}

	// Routing 2: a confident education classification without an override.
	if cls.Category == block.Education && cls.Confidence >= 0.7 &&
		!cls.ContextOverride && scores.Edu >= g.cfg.EduRouteThreshold {
		reasoning = append(reasoning, ReasonStrongEducation)
		return Result{
			Decision:   RouteToEducation,
			Scores:     scores,
			Confidence: cls.Confidence,
			Reasoning:  reasoning,
		}
	}

	// Acceptance: sufficient final score, then confidence calibration.
	if scores.Final >= g.cfg.FinalScoreAccept {
		confidence := minF(0.9, 0.4+scores.Final/10.0+cls.Confidence*0.3)

		if g.IsDateOnlyToken(trimmedTitle) {
			confidence -= g.cfg.DateOnlyTitlePenalty
			reasoning = append(reasoning, ReasonDateOnlyTitlePenalty)
		}
		if g.isSolidTechOrg(org) {
			confidence += g.cfg.SolidOrgBonus
			reasoning = append(reasoning, ReasonSolidTechOrgBonus)
		}
		confidence = clampF(confidence, 0, g.cfg.ConfidenceCeiling)

		if confidence >= g.cfg.MinConfidence {
			reasoning = append(reasoning, ReasonFinalScoreSufficient)
			if cls.ContextOverride {
				reasoning = append(reasoning, ReasonContextOverride)
			}
			return Result{
				Decision:     AcceptAsExperience,
				Scores:       scores,
				Confidence:   confidence,
				Reasoning:    reasoning,
				TitleOrgLink: &TitleOrgLink{Title: title, Organization: org},
			}
		}

		reasoning = append(reasoning, ReasonConfidenceTooLow)
		return Result{
			Decision:   RejectAsNoise,
			Scores:     scores,
			Confidence: confidence,
			Reasoning:  reasoning,
		}
	}

	// Rescue: low score but a confident experience classification that
	// overrode an educational organization.
	if cls.Category == block.Experience && cls.ContextOverride && cls.Confidence >= 0.6 {
		reasoning = append(reasoning, ReasonContextOverrideRescue)
		return Result{
			Decision:     AcceptAsExperience,
			Scores:       scores,
			Confidence:   clampF(cls.Confidence, 0, g.cfg.ConfidenceCeiling),
			Reasoning:    reasoning,
			TitleOrgLink: &TitleOrgLink{Title: title, Organization: org},
		}
	}

	reasoning = append(reasoning, ReasonInsufficientScore)
	return Result{
		Decision:   RejectAsNoise,
		Scores:     scores,
		Confidence: 0.2,
		Reasoning:  reasoning,
	}
}

func (g *Gate) isSolidTechOrg(org string) bool {
	if org == "" {
		return false
	}
	normalized := strings.TrimSpace(strings.ToLower(org))
	for _, solid := range g.lex.SolidTechOrgs {
		if strings.Contains(normalized, solid) {
			return true
		}
	}
	return false
}

func (g *Gate) recordStats(res Result) {
	switch res.Decision {
	case AcceptAsExperience:
		g.stats.Accepted.Add(1)
	case RouteToEducation:
		g.stats.RoutedToEducation.Add(1)
	case RouteToCertification:
		g.stats.RoutedToCertification.Add(1)
	case RejectAsNoise:
		g.stats.Rejected.Add(1)
	}
	if res.Classification.ContextOverride {
		g.stats.ContextOverrides.Add(1)
	}
}

// StatsSnapshot returns a copy of the counters with derived rates.
func (g *Gate) StatsSnapshot() Snapshot {
	snap := Snapshot{
		BlocksProcessed:       g.stats.BlocksProcessed.Load(),
		Accepted:              g.stats.Accepted.Load(),
		RoutedToEducation:     g.stats.RoutedToEducation.Load(),
		RoutedToCertification: g.stats.RoutedToCertification.Load(),
		Rejected:              g.stats.Rejected.Load(),
		HardRejections:        g.stats.HardRejections.Load(),
		ContextOverrides:      g.stats.ContextOverrides.Load(),
	}
	if snap.BlocksProcessed > 0 {
		total := float64(snap.BlocksProcessed)
		snap.AcceptanceRate = float64(snap.Accepted) / total
		snap.RejectionRate = float64(snap.Rejected) / total
		snap.HardRejectionRate = float64(snap.HardRejections) / total
	}
	return snap
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
