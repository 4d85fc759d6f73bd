package lexicon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultLexicon(t *testing.T) {
	lex := Default()

	if lex.Lang != "fr+en" {
		t.Errorf("lang = %q, want fr+en", lex.Lang)
	}

	lists := map[string][]string{
		"section_headers":        lex.SectionHeaders,
		"employment_keywords":    lex.EmploymentKeywords,
		"education_keywords":     lex.EducationKeywords,
		"certification_keywords": lex.CertificationKeywords,
		"action_verbs":           lex.ActionVerbs,
		"month_names":            lex.MonthNames,
		"cities":                 lex.Cities,
		"acronym_allowlist":      lex.AcronymAllowlist,
		"solid_tech_orgs":        lex.SolidTechOrgs,
	}
	for name, list := range lists {
		if len(list) == 0 {
			t.Errorf("default %s is empty", name)
		}
	}
}

func TestLoadFromYAMLMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	content := []byte("lang: fr\nacronym_allowlist:\n  - ACME\n  - FOO\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	lex, err := LoadFromYAML(path)
	if err != nil {
		t.Fatalf("LoadFromYAML: %v", err)
	}

	if lex.Lang != "fr" {
		t.Errorf("lang = %q, want fr", lex.Lang)
	}
	if len(lex.AcronymAllowlist) != 2 || lex.AcronymAllowlist[0] != "ACME" {
		t.Errorf("allowlist = %v, want the override", lex.AcronymAllowlist)
	}

	// Lists absent from the file keep their defaults.
	if len(lex.EmploymentKeywords) == 0 {
		t.Error("employment keywords lost during merge")
	}
	if len(lex.MonthNames) != len(Default().MonthNames) {
		t.Errorf("month names = %d, want the defaults", len(lex.MonthNames))
	}
}

func TestLoadFromYAMLMissingFile(t *testing.T) {
	if _, err := LoadFromYAML(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestCountSubstrings(t *testing.T) {
	tests := []struct {
		text     string
		keywords []string
		want     int
	}{
		{"encadrement d'une équipe", []string{"encadre", "équipe"}, 2},
		{"Développement Web", []string{"développement"}, 1},
		{"rien ici", []string{"stage", "cdi"}, 0},
		{"", []string{"stage"}, 0},
		{"stage stage stage", []string{"stage"}, 1},
		{"texte", nil, 0},
		{"texte", []string{""}, 0},
	}

	for _, tt := range tests {
		if got := CountSubstrings(tt.text, tt.keywords); got != tt.want {
			t.Errorf("CountSubstrings(%q, %v) = %d, want %d", tt.text, tt.keywords, got, tt.want)
		}
	}
}

func TestLowerSet(t *testing.T) {
	set := LowerSet([]string{"Paris", "LYON"})
	if _, ok := set["paris"]; !ok {
		t.Error("paris missing")
	}
	if _, ok := set["lyon"]; !ok {
		t.Error("lyon missing")
	}
	if _, ok := set["Paris"]; ok {
		t.Error("set should only hold lowercase keys")
	}
}

func TestStats(t *testing.T) {
	stats := Default().Stats()

	if stats.Lang != "fr+en" {
		t.Errorf("lang = %q", stats.Lang)
	}
	if stats.TotalTerms == 0 {
		t.Error("total terms = 0")
	}
	if stats.Lists["employment_keywords"] != len(Default().EmploymentKeywords) {
		t.Errorf("employment count = %d", stats.Lists["employment_keywords"])
	}

	sum := 0
	for _, n := range stats.Lists {
		sum += n
	}
	if sum != stats.TotalTerms {
		t.Errorf("list counts sum to %d, total says %d", sum, stats.TotalTerms)
	}
}
