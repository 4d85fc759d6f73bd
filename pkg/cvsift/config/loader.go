package config

import (
	"fmt"

	"github.com/cognicore/cvsift/pkg/cvsift/classify"
	"github.com/cognicore/cvsift/pkg/cvsift/extract"
	"github.com/cognicore/cvsift/pkg/cvsift/gate"
	"github.com/cognicore/cvsift/pkg/cvsift/lexicon"
	"github.com/cognicore/cvsift/pkg/cvsift/segment"
)

// Loader loads configuration files and constructs pipeline components.
// Empty paths fall back to built-in defaults.
type Loader struct {
	LexiconPath  string
	SettingsPath string
}

// Components holds the constructed pipeline components.
type Components struct {
	Lexicon    *lexicon.Lexicon
	Segmenter  *segment.Segmenter
	Extractor  *extract.Extractor
	Classifier *classify.Classifier
	Gate       *gate.Gate
	Settings   *Settings
}

// Load reads the configuration files and returns initialized components.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	if l.LexiconPath != "" {
		lex, err := lexicon.LoadFromYAML(l.LexiconPath)
		if err != nil {
			return nil, fmt.Errorf("load lexicon: %w", err)
		}
		comp.Lexicon = lex
	} else {
		comp.Lexicon = lexicon.Default()
	}

	if l.SettingsPath != "" {
		settings, err := LoadSettings(l.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		comp.Settings = settings
	} else {
		comp.Settings = &Settings{Gate: gate.DefaultConfig()}
	}

	comp.Segmenter = segment.New(comp.Lexicon)
	comp.Extractor = extract.New(comp.Lexicon)
	comp.Classifier = classify.New(comp.Lexicon)
	comp.Gate = gate.New(comp.Settings.Gate, comp.Lexicon)

	return comp, nil
}
