// Package classify assigns a provisional category to a block by reading the
// title/organization/description context: experience, education,
// certification, or unknown. Classification is an ordered rule cascade over
// counted signals; the first rule whose preconditions hold wins, and every
// decision carries machine-readable reasoning tokens.
package classify

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/cognicore/cvsift/pkg/cvsift/block"
	"github.com/cognicore/cvsift/pkg/cvsift/extract"
	"github.com/cognicore/cvsift/pkg/cvsift/lexicon"
)

// Signals are the counted classification signals for one block. Role signals
// are scoped to the title, organization signals to the organization field,
// context signals to the full title+organization+description text.
type Signals struct {
	ProfessionalRole    int
	StudentRole         int
	EducationalOrg      int
	BusinessOrg         int
	Certification       int
	ProfessionalContext int
	AcademicContext     int
}

// TitleOrgContext is the title/organization pair a classification was based
// on, kept for downstream linking and reporting.
type TitleOrgContext struct {
	Title        string
	Organization string
}

// Result is the outcome of classifying one block.
type Result struct {
	Category   block.Category
	Confidence float64
	Reasoning  []string

	TitleOrgContext      *TitleOrgContext
	ProfessionalSignals  int
	AcademicSignals      int
	CertificationSignals int

	// ContextOverride is set when a professional role overrode an
	// educational organization (professor at a university is experience).
	ContextOverride bool
}

// Stats tracks classifier activity across a batch.
type Stats struct {
	BlocksClassified int
	ByCategory       map[block.Category]int
	ContextOverrides int
	HighConfidence   int
}

// Classifier applies the rule cascade. Construct once and share; the
// classifier itself is stateless apart from batch counters, which are
// mutex-guarded for concurrent use.
type Classifier struct {
	lex       *lexicon.Lexicon
	extractor *extract.Extractor

	professionalRoles []*regexp.Regexp
	studentRoles      []*regexp.Regexp
	educationalOrgs   []*regexp.Regexp
	businessOrgs      []*regexp.Regexp
	certifications    []*regexp.Regexp
	professionalCtx   []*regexp.Regexp
	academicCtx       []*regexp.Regexp

	mu    sync.Mutex
	stats Stats
}

// wordRe compiles a case-insensitive alternation delimited by non-letter,
// non-digit characters. Go's \b is ASCII-only and misfires next to accented
// letters, so word edges are matched explicitly.
func wordRe(alt string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + alt + `)(?:[^\p{L}\p{N}]|$)`)
}

// New builds a classifier over the given lexicon. A nil lexicon falls back to
// the built-in defaults.
func New(lex *lexicon.Lexicon) *Classifier {
	if lex == nil {
		lex = lexicon.Default()
	}

	return &Classifier{
		lex:       lex,
		extractor: extract.New(lex),

		professionalRoles: []*regexp.Regexp{
			wordRe(`professeur|enseignant|maître\s+de\s+conférences|chargé\s+de\s+cours`),
			wordRe(`directeur|chef|manager|responsable|coordinateur|supervisor`),
			wordRe(`développeur|developer|ingénieur|engineer|architecte|architect`),
			wordRe(`technicien|administrateur|analyst|analyste|consultant`),
			wordRe(`commercial|vendeur|conseiller|assistant|adjoint`),
			wordRe(`stagiaire|stage|alternant|alternance|apprenti|apprentissage`),
			wordRe(`expert|spécialiste|lead|senior|junior|intern`),
		},

		studentRoles: []*regexp.Regexp{
			wordRe(`bachelor|licence|license|master|mba|doctorat|phd|thèse|mémoire`),
			wordRe(`bac|baccalauréat|bts|dut|but|cap|bep`),
			wordRe(`étudiant|élève|candidat|doctorant|thésard`),
			wordRe(`formation|cursus|parcours|spécialisation`),
		},

		educationalOrgs: []*regexp.Regexp{
			wordRe(`université|university|college|faculté|faculty`),
			wordRe(`école|ecole|school|institut|institute|academy`),
			wordRe(`lycée|lycee|collège`),
			wordRe(`conservatoire|iut|cnam|cned`),
			wordRe(`polytechnique|hec|essec|escp|insead|sciences\s+po`),
			wordRe(`ens|insa|ensta|supelec|mines|ponts`),
			wordRe(`epitech|supinfo|efrei|esme|esiee|epita|iseg`),
		},

		businessOrgs: []*regexp.Regexp{
			wordRe(`sas|sarl|sa|eurl|sci|inc|corp|corporation|ltd|llc|gmbh|ag`),
			wordRe(`consulting|conseil|services|solutions|technologies|tech`),
			wordRe(`systems|group|groupe|holding|international`),
			wordRe(`startup|start-up|entreprise|company|firm|agency|agence`),
			wordRe(`cnrs|inserm|cea|inra|cnam|edf|ratp|sncf|aphp`),
		},

		certifications: []*regexp.Regexp{
			wordRe(`toefl|toeic|ielts|bulats|cambridge|delf|dalf|tcf|tef`),
			wordRe(`goethe|testdaf|dele|siele|hsk|jlpt`),
			wordRe(`aws|amazon\s+web\s+services|azure|microsoft|google\s+cloud|gcp`),
			wordRe(`cisco|ccna|ccnp|ccie|comptia|security\+|network\+`),
			wordRe(`pmp|prince2|itil|scrum|agile|six\s+sigma`),
			wordRe(`certified|certification|certificate|diplôme|attestation`),
			wordRe(`(?:score|niveau|level|grade|points?)\s+\d+`),
			regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:réussi|obtenu|passé|validé)(?:[^\p{L}\p{N}]).*(?:examen|test|certification)`),
		},

		professionalCtx: []*regexp.Regexp{
			wordRe(`mission|projet|client|customer|équipe|team`),
			wordRe(`objectif|résultat|achievement|performance|kpi`),
			wordRe(`budget|chiffre\s+d'affaires|revenue|profit`),
			wordRe(`manager|superviseur|collègue|colleague|partenaire`),
			wordRe(`hiérarchie|reporting|encadrement|supervision`),
			wordRe(`contrat|contract|cdd|cdi|temps\s+plein|temps\s+partiel`),
			wordRe(`salaire|rémunération|salary|benefits|avantages`),
		},

		academicCtx: []*regexp.Regexp{
			wordRe(`cours|class|enseignement|teaching|recherche|research`),
			wordRe(`projet\s+étudiant|student\s+project|travaux\s+pratiques|tp`),
			wordRe(`mémoire|thèse|dissertation|thesis|rapport\s+de\s+stage`),
			wordRe(`examen|exam|note|grade|évaluation|assessment`),
			wordRe(`ects|crédit|unité\s+d'enseignement|ue|module`),
			wordRe(`semestre|trimestre|année\s+d'étude|niveau\s+d'étude`),
			wordRe(`spécialisation|majeure|mineure|option|parcours`),
		},

		stats: Stats{ByCategory: make(map[block.Category]int)},
	}
}

// Classify extracts the block's fields if needed, counts signals, and runs
// the rule cascade. Blocks already tagged as headers keep their category.
func (c *Classifier) Classify(b *block.Block) Result {
	if b.Category == block.Header {
		res := Result{
			Category:   block.Header,
			Confidence: 0.9,
			Reasoning:  []string{"section_header_block"},
		}
		c.record(res)
		return res
	}

	c.extractor.Ensure(b)

	title, _ := b.Element(block.Title)
	org, _ := b.Element(block.Organization)
	desc, _ := b.Element(block.Description)

	signals := c.AnalyzeSignals(title, org, desc)
	res := c.apply(title, org, signals)
	b.Category = res.Category
	c.record(res)
	return res
}

// AnalyzeSignals counts classification signals: each matching pattern family
// counts once, and context signals additionally count matching employment
// keywords and action verbs.
func (c *Classifier) AnalyzeSignals(title, org, desc string) Signals {
	fullText := strings.ToLower(title + " " + org + " " + desc)

	s := Signals{
		ProfessionalRole: countMatching(c.professionalRoles, title),
		StudentRole:      countMatching(c.studentRoles, title),
		EducationalOrg:   countMatching(c.educationalOrgs, org),
		BusinessOrg:      countMatching(c.businessOrgs, org),
		Certification:    countMatching(c.certifications, fullText),
	}

	s.ProfessionalContext = countMatching(c.professionalCtx, fullText) +
		lexicon.CountSubstrings(fullText, c.lex.EmploymentKeywords) +
		lexicon.CountSubstrings(fullText, c.lex.ActionVerbs)

	s.AcademicContext = countMatching(c.academicCtx, fullText)

	return s
}

func countMatching(patterns []*regexp.Regexp, text string) int {
	if text == "" {
		return 0
	}
	n := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// apply runs the ordered rule cascade. Rule order is semantic: certification
// evidence beats everything, then role-with-context, then weaker fallbacks.
func (c *Classifier) apply(title, org string, s Signals) Result {
	pair := &TitleOrgContext{Title: title, Organization: org}

	// Rule 1: two independent certification signals decide the block.
	if s.Certification >= 2 {
		return Result{
			Category:             block.Certification,
			Confidence:           0.8 + minF(0.2, float64(s.Certification)*0.05),
			Reasoning:            []string{fmt.Sprintf("certification_signals_%d", s.Certification)},
			CertificationSignals: s.Certification,
		}
	}

	// Rule 2: a professional role in the title plus professional context.
	// An educational organization does not demote it; a professor at a
	// university is working, not studying.
	if s.ProfessionalRole >= 1 && s.ProfessionalContext >= 1 {
		reasoning := []string{"professional_role_with_context"}
		conf := 0.7 + minF(0.3, float64(s.ProfessionalRole+s.ProfessionalContext)*0.05)

		override := s.EducationalOrg >= 1
		if override {
			reasoning = append(reasoning, "professional_override_educational_org")
			conf += 0.1
		}

		return Result{
			Category:            block.Experience,
			Confidence:          conf,
			Reasoning:           reasoning,
			TitleOrgContext:     pair,
			ProfessionalSignals: s.ProfessionalRole + s.ProfessionalContext,
			ContextOverride:     override,
		}
	}

	// Rule 3: a student role at an educational organization.
	if s.StudentRole >= 1 && s.EducationalOrg >= 1 {
		return Result{
			Category:        block.Education,
			Confidence:      0.8 + minF(0.2, float64(s.StudentRole+s.EducationalOrg)*0.05),
			Reasoning:       []string{"student_role_in_educational_org"},
			TitleOrgContext: pair,
			AcademicSignals: s.StudentRole + s.EducationalOrg,
		}
	}

	// Rule 4: a professional role without context.
	if s.ProfessionalRole >= 1 {
		reasoning := []string{"professional_role_weak_context"}
		conf := 0.4
		if s.BusinessOrg >= 1 {
			reasoning = append(reasoning, "business_org_support")
			conf = 0.6 + minF(0.2, float64(s.BusinessOrg)*0.1)
		}
		return Result{
			Category:            block.Experience,
			Confidence:          conf,
			Reasoning:           reasoning,
			TitleOrgContext:     pair,
			ProfessionalSignals: s.ProfessionalRole,
		}
	}

	// Rule 5: educational organization with academic context.
	if s.EducationalOrg >= 1 && s.AcademicContext >= 1 {
		return Result{
			Category:        block.Education,
			Confidence:      0.5 + minF(0.2, float64(s.EducationalOrg+s.AcademicContext)*0.05),
			Reasoning:       []string{"educational_org_with_academic_context"},
			TitleOrgContext: pair,
			AcademicSignals: s.EducationalOrg + s.AcademicContext,
		}
	}

	// Rule 6: a business organization alone defaults to experience.
	if s.BusinessOrg >= 1 {
		return Result{
			Category:            block.Experience,
			Confidence:          0.5 + minF(0.2, float64(s.BusinessOrg)*0.1),
			Reasoning:           []string{"business_org_default"},
			TitleOrgContext:     pair,
			ProfessionalSignals: s.BusinessOrg,
		}
	}

	// Rules 7 and 8: whichever context dominates, at low confidence.
	if s.ProfessionalContext > s.AcademicContext {
		return Result{
			Category:            block.Experience,
			Confidence:          0.4 + minF(0.2, float64(s.ProfessionalContext)*0.05),
			Reasoning:           []string{"professional_context_dominance"},
			ProfessionalSignals: s.ProfessionalContext,
		}
	}
	if s.AcademicContext > s.ProfessionalContext {
		return Result{
			Category:        block.Education,
			Confidence:      0.4 + minF(0.2, float64(s.AcademicContext)*0.05),
			Reasoning:       []string{"academic_context_dominance"},
			AcademicSignals: s.AcademicContext,
		}
	}

	return Result{
		Category:   block.Unknown,
		Confidence: 0.1,
		Reasoning:  []string{"insufficient_signals_for_classification"},
	}
}

// PairCategory classifies a bare title/organization pair with optional
// context lines, without a pre-built block.
func (c *Classifier) PairCategory(title, org string, contextLines []string) block.Category {
	lines := []string{title, org}
	if len(contextLines) > 3 {
		contextLines = contextLines[:3]
	}
	lines = append(lines, contextLines...)

	b := block.New(lines, 0, len(lines)-1)
	b.SetField(block.ExtractedField{Kind: block.Title, Content: title, Confidence: 0.5})
	b.SetField(block.ExtractedField{Kind: block.Organization, Content: org, Confidence: 0.5})
	if len(contextLines) > 0 {
		b.SetField(block.ExtractedField{
			Kind:       block.Description,
			Content:    strings.Join(contextLines, " "),
			Confidence: 0.3,
		})
	}

	return c.Classify(b).Category
}

// IsProfessorAtSchool reports the teaching-role-at-educational-org case,
// which counts as work experience.
func IsProfessorAtSchool(title, org string) bool {
	titleLower := strings.ToLower(title)
	orgLower := strings.ToLower(org)

	teaching := lexicon.CountSubstrings(titleLower, []string{
		"professeur", "enseignant", "maître de conférences",
		"directeur", "responsable pédagogique",
	}) > 0
	eduOrg := lexicon.CountSubstrings(orgLower, []string{
		"université", "école", "college", "institut", "lycée",
	}) > 0

	return teaching && eduOrg
}

// IsStudentAtSchool reports the student-at-educational-org case, which is
// education rather than experience.
func IsStudentAtSchool(title, org string) bool {
	titleLower := strings.ToLower(title)
	orgLower := strings.ToLower(org)

	student := lexicon.CountSubstrings(titleLower, []string{
		"bachelor", "master", "licence", "bts", "dut",
		"étudiant", "élève", "doctorant", "thèse",
	}) > 0
	eduOrg := lexicon.CountSubstrings(orgLower, []string{
		"université", "école", "college", "institut", "lycée",
	}) > 0

	return student && eduOrg
}

// IsInternship reports an internship or apprenticeship title. Internships
// are always experience regardless of the organization.
func IsInternship(title string) bool {
	return lexicon.CountSubstrings(strings.ToLower(title), []string{
		"stage", "stagiaire", "alternant", "alternance", "apprenti",
	}) > 0
}

// IsProfessionalContext decides whether a title/organization pair describes
// work. The specialized cases short-circuit the full cascade.
func (c *Classifier) IsProfessionalContext(title, org string) bool {
	if IsProfessorAtSchool(title, org) {
		return true
	}
	if IsInternship(title) {
		return true
	}
	if IsStudentAtSchool(title, org) {
		return false
	}
	return c.PairCategory(title, org, nil) == block.Experience
}

func (c *Classifier) record(res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.BlocksClassified++
	c.stats.ByCategory[res.Category]++
	if res.ContextOverride {
		c.stats.ContextOverrides++
	}
	if res.Confidence >= 0.7 {
		c.stats.HighConfidence++
	}
}

// Stats returns a copy of the batch counters.
func (c *Classifier) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := Stats{
		BlocksClassified: c.stats.BlocksClassified,
		ByCategory:       make(map[block.Category]int, len(c.stats.ByCategory)),
		ContextOverrides: c.stats.ContextOverrides,
		HighConfidence:   c.stats.HighConfidence,
	}
	for k, v := range c.stats.ByCategory {
		out.ByCategory[k] = v
	}
	return out
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
