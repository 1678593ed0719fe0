package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/octagon/internal/analysis/domain"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		want    func(*Config)
		wantErr bool
	}{
		{
			name:    "empty keeps defaults",
			content: "",
			want:    func(*Config) {},
		},
		{
			name: "overrides",
			content: `name: project
entry: run
merge: join
merge-at-loop-heads-only: false
float: true
refinement: true
tracked:
  - run::i
max-iterations: 50
multi-edges: true
`,
			want: func(c *Config) {
				c.Name = "project"
				c.Entry = "run"
				c.Merge = "join"
				c.MergeAtLoopHeadsOnly = false
				c.Float = true
				c.Refinement = true
				c.Tracked = []string{"run::i"}
				c.MaxIterations = 50
				c.MultiEdges = true
			},
		},
		{
			name:    "unknown merge operator",
			content: "merge: narrowing\n",
			wantErr: true,
		},
		{
			name:    "unknown key",
			content: "rules: {}\n",
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(createTempDir(t, "config_test"), DefaultConfigFile)
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))

			config, err := LoadConfig(path)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			want := DefaultConfig()
			tc.want(&want)
			assert.Equal(t, want, config)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadConfig(filepath.Join(createTempDir(t, "config_test"), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteConfigRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(createTempDir(t, "config_test"), DefaultConfigFile)
	require.NoError(t, WriteConfig(path, DefaultConfig()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "merge: widening")
	assert.Contains(t, string(data), "max-iterations: 100000")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestEngineConfig(t *testing.T) {
	t.Parallel()
	config := DefaultConfig()
	config.Merge = "SEP"
	config.Tracked = []string{"main::x"}

	engineConfig, err := config.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, domain.Merger{Operator: domain.MergeSep, LoopHeadsOnly: true}, engineConfig.Merge)
	assert.Equal(t, "main", engineConfig.Entry)
	assert.Equal(t, []string{"main::x"}, engineConfig.Tracked)
	assert.Equal(t, 100000, engineConfig.MaxIterations)
}
