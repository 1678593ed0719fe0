package analyzer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/octagon/internal"
	"github.com/gnolang/octagon/internal/analysis/domain"
)

// DefaultConfigFile is the configuration file read when none is given.
const DefaultConfigFile = ".octagon.yaml"

// Config represents the analysis configuration file.
type Config struct {
	Name                 string   `yaml:"name"`
	Entry                string   `yaml:"entry"`
	Merge                string   `yaml:"merge"`
	MergeAtLoopHeadsOnly bool     `yaml:"merge-at-loop-heads-only"`
	Float                bool     `yaml:"float"`
	Refinement           bool     `yaml:"refinement"`
	Tracked              []string `yaml:"tracked"`
	MaxIterations        int      `yaml:"max-iterations"`
	MultiEdges           bool     `yaml:"multi-edges"`
}

// DefaultConfig returns the configuration written by `octagon init`.
func DefaultConfig() Config {
	defaults := internal.DefaultConfig()
	return Config{
		Name:                 "octagon",
		Entry:                defaults.Entry,
		Merge:                defaults.Merge.Operator.String(),
		MergeAtLoopHeadsOnly: defaults.Merge.LoopHeadsOnly,
		Float:                defaults.Floats,
		Refinement:           defaults.Refinement,
		Tracked:              []string{},
		MaxIterations:        defaults.MaxIterations,
		MultiEdges:           defaults.MultiEdges,
	}
}

// LoadConfig reads a configuration file. Keys missing from the file keep
// their default values.
func LoadConfig(configurationPath string) (Config, error) {
	config := DefaultConfig()

	f, err := os.Open(configurationPath)
	if err != nil {
		return config, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("error parsing %s: %w", configurationPath, err)
	}
	if _, err := config.EngineConfig(); err != nil {
		return config, fmt.Errorf("invalid configuration %s: %w", configurationPath, err)
	}
	return config, nil
}

// EngineConfig converts the file configuration into the engine's.
func (c Config) EngineConfig() (internal.Config, error) {
	op, err := domain.ParseMergeOperator(c.Merge)
	if err != nil {
		return internal.Config{}, err
	}
	return internal.Config{
		Entry: c.Entry,
		Merge: domain.Merger{
			Operator:      op,
			LoopHeadsOnly: c.MergeAtLoopHeadsOnly,
		},
		Floats:        c.Float,
		Refinement:    c.Refinement,
		Tracked:       c.Tracked,
		MaxIterations: c.MaxIterations,
		MultiEdges:    c.MultiEdges,
	}, nil
}

// WriteConfig writes config as YAML to path.
func WriteConfig(path string, config Config) error {
	d, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(d)
	return err
}
