// Package lexicon holds the keyword vocabularies the pipeline scores against:
// employment, education and certification keywords, action verbs, section
// headers, the city gazetteer, the acronym allowlist, and the curated list of
// well-known technology employers.
//
// Design principles:
//   - Plain data: components compile their own matchers from these lists, the
//     lexicon itself never matches text.
//   - Per-language: a lexicon carries a language tag; Default() merges the
//     French and English vocabularies since real résumés mix both.
//   - Overridable: any list can be replaced from a YAML file without
//     recompiling.
package lexicon

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon is an immutable set of keyword lists for one language (or a merged
// multi-language set). Load it once per process and share it read-only across
// workers.
type Lexicon struct {
	Lang string `yaml:"lang"`

	// Section headers that delimit résumé sections ("EXPÉRIENCE", "FORMATION").
	SectionHeaders []string `yaml:"section_headers"`

	// Evidence vocabularies for the gate's composite scores.
	EmploymentKeywords    []string `yaml:"employment_keywords"`
	EducationKeywords     []string `yaml:"education_keywords"`
	CertificationKeywords []string `yaml:"certification_keywords"`

	// Vocabulary for field-extraction confidence.
	ProfessionalKeywords []string `yaml:"professional_keywords"`
	ActionVerbs          []string `yaml:"action_verbs"`
	MonthNames           []string `yaml:"month_names"`

	// Closed gazetteer of major city names for location extraction.
	Cities []string `yaml:"cities"`

	// Technology keywords for skills extraction.
	TechnologyKeywords []string `yaml:"technology_keywords"`

	// Short all-caps organization names exempt from the acronym penalty.
	AcronymAllowlist []string `yaml:"acronym_allowlist"`

	// Globally recognized technology employers (confidence calibration bonus).
	SolidTechOrgs []string `yaml:"solid_tech_orgs"`

	// Noise section labels that disqualify a title ("Divers", "Activités extra").
	NoiseHeaders []string `yaml:"noise_headers"`
}

// Default returns the built-in merged French+English lexicon.
func Default() *Lexicon {
	return &Lexicon{
		Lang: "fr+en",

		SectionHeaders: []string{
			"expérience", "expériences", "experience", "experiences",
			"expérience professionnelle", "expériences professionnelles",
			"professional experience", "work experience", "employment",
			"formation", "formations", "éducation", "education",
			"certification", "certifications", "diplôme", "diplômes", "diplome", "diplomes",
			"compétences", "competences", "skills",
			"projets", "projet", "projects",
			"langues", "languages", "centres d'intérêt", "interests",
		},

		EmploymentKeywords: []string{
			"stage", "stagiaire", "intern", "internship", "alternance", "apprenti",
			"apprentissage", "cdd", "cdi", "freelance", "indépendant", "mission",
			"intérim", "consultant", "temps plein", "temps partiel", "full time",
			"part time", "contrat", "contract", "contractor", "consulting",
			"emploi", "poste", "salarié", "travail", "job",
			"developer", "développeur", "developpeur", "développement",
			"engineer", "ingénieur", "manager", "chef de projet", "responsable",
			"directeur", "assistant", "technicien", "analyst", "analyste",
			"specialist", "spécialiste", "coordinator", "coordinateur",
			"supervisor", "superviseur", "team lead", "chef d'équipe",
			"équipe", "equipe",
		},

		EducationKeywords: []string{
			"bachelor", "licence", "license", "master", "mba", "phd",
			"doctorat", "thèse", "bac", "baccalauréat", "bts", "dut", "but",
			"cap", "bep", "formation", "diplôme", "degree", "certification",
			"université", "university", "école", "ecole", "school", "college",
			"lycée", "lycee", "institut", "institute", "faculté", "faculty",
			"cours", "class", "étudiant", "student", "élève", "candidat",
		},

		CertificationKeywords: []string{
			"toefl", "toeic", "ielts", "cambridge", "voltaire", "pix",
			"aws", "azure", "gcp", "cisco", "microsoft", "oracle",
			"comptia", "cissp", "pmp", "scrum", "itil", "prince2",
			"certified", "certification", "certificate", "exam", "test",
			"score", "niveau", "level", "grade", "points",
		},

		ProfessionalKeywords: []string{
			"développement", "gestion", "management", "pilotage", "coordination",
			"supervision", "encadrement", "formation", "conseil", "expertise",
			"analyse", "conception", "réalisation", "maintenance", "support",
			"vente", "commercial", "marketing", "communication", "recherche",
			"développeur", "developer", "ingénieur", "engineer", "consultant",
			"stage", "stagiaire", "mission", "projet",
		},

		ActionVerbs: []string{
			"développé", "developpe", "conçu", "concu", "implémenté", "implemente",
			"géré", "gere", "piloté", "pilote", "assuré", "assure", "réalisé", "realise",
			"analysé", "analyse", "optimisé", "optimise", "maintenu", "industrialisé",
			"industrialise", "documenté", "documente", "créé", "cree", "animé", "anime",
			"coordonné", "coordonne", "supervisé", "supervise", "encadré", "encadre",
			"formé", "forme", "participé", "participe", "collaboré", "collabore",
			"amélioré", "ameliore", "rédigé", "redige", "présenté", "presente",
			"négocié", "negocie", "déployé", "deploye", "testé", "teste",
			"developed", "designed", "implemented", "managed", "led", "built",
			"created", "improved", "delivered", "maintained",
		},

		MonthNames: []string{
			"janvier", "février", "fevrier", "mars", "avril", "mai", "juin",
			"juillet", "août", "aout", "septembre", "octobre", "novembre",
			"décembre", "decembre",
			"january", "february", "march", "april", "may", "june", "july",
			"august", "september", "october", "november", "december",
		},

		Cities: []string{
			"Paris", "Lyon", "Marseille", "Toulouse", "Nice", "Nantes",
			"Strasbourg", "Montpellier", "Bordeaux", "Lille", "Rennes", "Reims",
			"Le Havre", "Saint-Étienne", "Toulon", "Grenoble", "Dijon", "Angers",
			"Nîmes", "Villeurbanne", "London", "Berlin", "Amsterdam", "Brussels",
			"Geneva", "Zurich", "Madrid", "Barcelona", "New York", "San Francisco",
		},

		TechnologyKeywords: []string{
			"Python", "Java", "JavaScript", "TypeScript", "C++", "C#", "PHP",
			"Ruby", "Go", "Rust", "SQL", "HTML", "CSS", "React", "Angular",
			"Vue", "Node.js", "Django", "Flask", "Spring", "Laravel",
			"Machine Learning", "Data Science", "Big Data", "Cloud",
			"AWS", "Azure", "GCP", "Docker", "Kubernetes", "DevOps",
			"Linux", "Git", "Terraform", "PostgreSQL", "MongoDB", "Redis",
		},

		AcronymAllowlist: []string{
			"IBM", "SAP", "AWS", "BNP", "BNPP", "SNCF", "EDF", "GDF", "RATP",
			"CNRS", "INRA", "CEA", "INSERM", "CNES", "APHP", "INRIA", "IRCAM",
		},

		SolidTechOrgs: []string{
			"amazon web services", "aws", "netflix", "uber technologies",
			"microsoft", "google", "facebook", "apple", "ibm", "oracle",
			"sap", "salesforce", "adobe", "nvidia", "intel",
		},

		NoiseHeaders: []string{
			"divers", "activités extra", "activites extra", "miscellaneous",
			"autres", "other",
		},
	}
}

// LoadFromYAML loads a lexicon from a YAML file. Lists present in the file
// replace the built-in defaults; absent lists keep them. This lets a caller
// override a single vocabulary (say, the acronym allowlist) without
// restating the rest.
func LoadFromYAML(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override Lexicon
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, err
	}

	lex := Default()
	lex.merge(&override)
	return lex, nil
}

func (l *Lexicon) merge(o *Lexicon) {
	if o.Lang != "" {
		l.Lang = o.Lang
	}
	replace := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	replace(&l.SectionHeaders, o.SectionHeaders)
	replace(&l.EmploymentKeywords, o.EmploymentKeywords)
	replace(&l.EducationKeywords, o.EducationKeywords)
	replace(&l.CertificationKeywords, o.CertificationKeywords)
	replace(&l.ProfessionalKeywords, o.ProfessionalKeywords)
	replace(&l.ActionVerbs, o.ActionVerbs)
	replace(&l.MonthNames, o.MonthNames)
	replace(&l.Cities, o.Cities)
	replace(&l.TechnologyKeywords, o.TechnologyKeywords)
	replace(&l.AcronymAllowlist, o.AcronymAllowlist)
	replace(&l.SolidTechOrgs, o.SolidTechOrgs)
	replace(&l.NoiseHeaders, o.NoiseHeaders)
}

// LowerSet builds a lowercase membership set from a keyword list.
func LowerSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// CountSubstrings counts how many of the given keywords occur as substrings
// of text (case-insensitive over pre-lowered keyword lists). Substring
// semantics are deliberate: "encadre" must match "encadrement".
func CountSubstrings(text string, keywords []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

// Stats summarizes lexicon contents for diagnostics.
type Stats struct {
	Lang       string
	TotalTerms int
	Lists      map[string]int
}

// Stats returns per-list term counts.
func (l *Lexicon) Stats() Stats {
	lists := map[string]int{
		"section_headers":        len(l.SectionHeaders),
		"employment_keywords":    len(l.EmploymentKeywords),
		"education_keywords":     len(l.EducationKeywords),
		"certification_keywords": len(l.CertificationKeywords),
		"professional_keywords":  len(l.ProfessionalKeywords),
		"action_verbs":           len(l.ActionVerbs),
		"month_names":            len(l.MonthNames),
		"cities":                 len(l.Cities),
		"technology_keywords":    len(l.TechnologyKeywords),
		"acronym_allowlist":      len(l.AcronymAllowlist),
		"solid_tech_orgs":        len(l.SolidTechOrgs),
		"noise_headers":          len(l.NoiseHeaders),
	}
	total := 0
	for _, n := range lists {
		total += n
	}
	return Stats{Lang: l.Lang, TotalTerms: total, Lists: lists}
}
