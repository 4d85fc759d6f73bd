package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cognicore/cvsift/pkg/cvsift/gate"
	"github.com/cognicore/cvsift/pkg/cvsift/internalerr"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSettings(t *testing.T) {
	path := writeFile(t, "settings.yaml", `
gate:
  final_score_accept: 1.5
  min_confidence: 0.4
workers: 8
`)

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Gate.FinalScoreAccept != 1.5 {
		t.Errorf("final_score_accept = %.2f, want 1.50", s.Gate.FinalScoreAccept)
	}
	if s.Gate.MinConfidence != 0.4 {
		t.Errorf("min_confidence = %.2f, want 0.40", s.Gate.MinConfidence)
	}
	if s.Workers != 8 {
		t.Errorf("workers = %d, want 8", s.Workers)
	}
}

func TestLoadSettingsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"confidence above one", "gate:\n  min_confidence: 1.5\n"},
		{"negative ceiling", "gate:\n  confidence_ceiling: -0.1\n"},
		{"negative accept threshold", "gate:\n  final_score_accept: -1\n"},
		{"negative workers", "workers: -2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "settings.yaml", tt.content)
			_, err := LoadSettings(path)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !errors.Is(err, internalerr.ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoaderDefaults(t *testing.T) {
	loader := &Loader{}

	comp, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if comp.Lexicon == nil || comp.Segmenter == nil || comp.Extractor == nil ||
		comp.Classifier == nil || comp.Gate == nil {
		t.Fatalf("components missing: %+v", comp)
	}
	if comp.Settings.Gate != gate.DefaultConfig() {
		t.Errorf("gate config = %+v, want defaults", comp.Settings.Gate)
	}
}

func TestLoaderWithFiles(t *testing.T) {
	lexPath := writeFile(t, "lexicon.yaml", "lang: fr\n")
	settingsPath := writeFile(t, "settings.yaml", "workers: 2\n")

	loader := &Loader{LexiconPath: lexPath, SettingsPath: settingsPath}
	comp, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if comp.Lexicon.Lang != "fr" {
		t.Errorf("lang = %q, want fr", comp.Lexicon.Lang)
	}
	if comp.Settings.Workers != 2 {
		t.Errorf("workers = %d, want 2", comp.Settings.Workers)
	}
}

func TestLoaderBadLexiconPath(t *testing.T) {
	loader := &Loader{LexiconPath: filepath.Join(t.TempDir(), "absent.yaml")}
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected an error for a missing lexicon file")
	}
}
