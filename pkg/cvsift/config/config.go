package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/cvsift/pkg/cvsift/gate"
	"github.com/cognicore/cvsift/pkg/cvsift/internalerr"
)

// Settings is the on-disk pipeline configuration.
type Settings struct {
	Gate gate.Config `yaml:"gate"`

	// Workers bounds concurrent block validation; zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// LoadSettings loads pipeline settings from a YAML file. Thresholds absent
// from the file keep the gate defaults.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings that would make the gate misbehave.
func (s *Settings) Validate() error {
	if s.Gate.MinConfidence < 0 || s.Gate.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence %.2f outside [0,1]",
			internalerr.ErrInvalidConfig, s.Gate.MinConfidence)
	}
	if s.Gate.ConfidenceCeiling < 0 || s.Gate.ConfidenceCeiling > 1 {
		return fmt.Errorf("%w: confidence_ceiling %.2f outside [0,1]",
			internalerr.ErrInvalidConfig, s.Gate.ConfidenceCeiling)
	}
	if s.Gate.FinalScoreAccept < 0 {
		return fmt.Errorf("%w: final_score_accept must not be negative",
			internalerr.ErrInvalidConfig)
	}
	if s.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", internalerr.ErrInvalidConfig)
	}
	return nil
}
