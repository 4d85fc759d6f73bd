package extract

import (
	"math"
	"strings"
	"testing"

	"github.com/cognicore/cvsift/pkg/cvsift/block"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestExtractTypicalEntry(t *testing.T) {
	e := New(nil)
	b := block.New([]string{
		"Développeur Full Stack",
		"TechCorp Solutions SAS",
		"Mars 2020 - Septembre 2022",
		"• Développement d'applications React pour les clients",
	}, 0, 3)

	fields := e.Extract(b)

	title, ok := fields[block.Title]
	if !ok {
		t.Fatal("expected a title")
	}
	if title.Content != "Développeur Full Stack" {
		t.Errorf("title = %q", title.Content)
	}
	// base 0.5 + one professional keyword + length bonus + "client" context
	if !almostEqual(title.Confidence, 0.75) {
		t.Errorf("title confidence = %.2f, want 0.75", title.Confidence)
	}

	org, ok := fields[block.Organization]
	if !ok {
		t.Fatal("expected an organization")
	}
	if org.Content != "TechCorp Solutions SAS" {
		t.Errorf("organization = %q", org.Content)
	}
	if !almostEqual(org.Confidence, 1.0) {
		t.Errorf("organization confidence = %.2f, want 1.00", org.Confidence)
	}

	dates, ok := fields[block.Dates]
	if !ok {
		t.Fatal("expected dates")
	}
	if dates.Content != "Mars 2020 - Septembre 2022" {
		t.Errorf("dates = %q", dates.Content)
	}
	if !almostEqual(dates.Confidence, 1.0) {
		t.Errorf("dates confidence = %.2f, want 1.00", dates.Confidence)
	}

	if _, ok := fields[block.Description]; !ok {
		t.Error("expected a description from the bullet line")
	}

	// Fields land on the block too.
	if got, _ := b.Element(block.Title); got != "Développeur Full Stack" {
		t.Errorf("block element title = %q", got)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	e := New(nil)
	b := block.New([]string{
		"Consultant Data",
		"Innovatech Consulting",
		"2019 - 2021",
	}, 0, 2)

	first := e.Extract(b)
	second := e.Extract(b)

	if len(first) != len(second) {
		t.Fatalf("field count changed: %d then %d", len(first), len(second))
	}
	for kind, f := range first {
		g, ok := second[kind]
		if !ok {
			t.Errorf("field %s missing on re-extract", kind)
			continue
		}
		if f.Content != g.Content || !almostEqual(f.Confidence, g.Confidence) {
			t.Errorf("field %s changed: %+v then %+v", kind, f, g)
		}
	}
}

func TestEnsureSkipsExtractedBlocks(t *testing.T) {
	e := New(nil)
	b := block.New([]string{"Développeur Web", "TechCorp SAS"}, 0, 1)

	b.SetField(block.ExtractedField{Kind: block.Title, Content: "préservé", Confidence: 0.9})
	e.Ensure(b)

	if got, _ := b.Element(block.Title); got != "préservé" {
		t.Errorf("Ensure overwrote an existing title: %q", got)
	}
}

func TestExtractNoFieldsFromNoise(t *testing.T) {
	e := New(nil)
	b := block.New([]string{"...", "###"}, 0, 1)

	fields := e.Extract(b)
	for kind, f := range fields {
		if strings.TrimSpace(f.Content) == "" {
			t.Errorf("field %s has empty content", kind)
		}
	}
	if _, ok := fields[block.Title]; ok {
		t.Error("noise should not yield a title")
	}
}

func TestExtractDatesVariants(t *testing.T) {
	e := New(nil)

	tests := []struct {
		line string
		want string
	}{
		{"Janvier 2020", "Janvier 2020"},
		{"01/2020 - 06/2021", "01/2020 - 06/2021"},
		{"2018 - 2020", "2018 - 2020"},
		{"depuis Mars 2021", "depuis Mars 2021"},
	}

	for _, tt := range tests {
		b := block.New([]string{tt.line}, 0, 0)
		f, ok := e.extractDates(b)
		if !ok {
			t.Errorf("extractDates(%q): no match", tt.line)
			continue
		}
		// Combined same-line matches join with spaces; allow reordering but
		// require every expected token present.
		for _, tok := range strings.Fields(tt.want) {
			if !strings.Contains(f.Content, tok) {
				t.Errorf("extractDates(%q) = %q, missing %q", tt.line, f.Content, tok)
			}
		}
	}
}

func TestExtractLocation(t *testing.T) {
	e := New(nil)

	b := block.New([]string{"Développeur Web", "TechCorp, Paris"}, 0, 1)
	f, ok := e.extractLocation(b)
	if !ok {
		t.Fatal("expected a location")
	}
	if f.Content != "Paris" {
		t.Errorf("location = %q, want Paris", f.Content)
	}
	if !almostEqual(f.Confidence, 0.7) {
		t.Errorf("location confidence = %.2f", f.Confidence)
	}

	b = block.New([]string{"75001 Paris"}, 0, 0)
	if _, ok := e.extractLocation(b); !ok {
		t.Error("expected postal-code location")
	}
}

func TestExtractSkillsTokenBoundaries(t *testing.T) {
	e := New(nil)

	b := block.New([]string{"Stack: Python, React et Docker chez Google"}, 0, 0)
	f, ok := e.extractSkills(b)
	if !ok {
		t.Fatal("expected skills")
	}
	for _, want := range []string{"Python", "React", "Docker"} {
		if !strings.Contains(f.Content, want) {
			t.Errorf("skills %q missing %q", f.Content, want)
		}
	}
	// "Go" must not fire inside "Google".
	if strings.Contains(f.Content, "Go,") || f.Content == "Go" {
		t.Errorf("skills %q wrongly matched Go inside Google", f.Content)
	}
}

func TestContainsToken(t *testing.T) {
	tests := []struct {
		text, kw string
		want     bool
	}{
		{"travaille chez Google", "Go", false},
		{"écrit en Go depuis 2020", "Go", true},
		{"C++ et C#", "C++", true},
		{"javascript", "Java", false},
		{"Java 17", "Java", true},
	}

	for _, tt := range tests {
		if got := containsToken(tt.text, tt.kw); got != tt.want {
			t.Errorf("containsToken(%q, %q) = %v, want %v", tt.text, tt.kw, got, tt.want)
		}
	}
}

func TestLink(t *testing.T) {
	e := New(nil)
	b := block.New([]string{
		"Développeur Full Stack",
		"TechCorp Solutions SAS",
	}, 0, 1)

	title := block.ExtractedField{Kind: block.Title, Content: "Développeur Full Stack", Confidence: 0.7, LineIdx: 0}
	org := block.ExtractedField{Kind: block.Organization, Content: "TechCorp Solutions SAS", Confidence: 1.0, LineIdx: 1}

	gotTitle, gotOrg, conf := e.Link(title, org, b)
	if gotTitle != title.Content || gotOrg != org.Content {
		t.Errorf("Link returned %q / %q", gotTitle, gotOrg)
	}
	// avg 0.85 + tech coherence 0.2 - distance 0.1
	if !almostEqual(conf, 0.95) {
		t.Errorf("link confidence = %.2f, want 0.95", conf)
	}

	// Teaching role at an educational org earns the domain bonus.
	profTitle := block.ExtractedField{Kind: block.Title, Content: "Professeur de Mathématiques", Confidence: 0.6, LineIdx: 0}
	eduOrg := block.ExtractedField{Kind: block.Organization, Content: "Université Paris-Saclay", Confidence: 0.7, LineIdx: 1}
	_, _, profConf := e.Link(profTitle, eduOrg, b)
	// avg 0.65 + teaching coherence 0.3 - distance 0.1
	if !almostEqual(profConf, 0.85) {
		t.Errorf("professor link confidence = %.2f, want 0.85", profConf)
	}

	if _, _, zero := e.Link(block.ExtractedField{}, org, b); zero != 0 {
		t.Errorf("empty title should link at 0, got %.2f", zero)
	}
}
