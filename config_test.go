package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), configFileName))
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, cfg config)
		wantErr bool
	}{
		{
			name: "overrides",
			content: `
[api]
base_url = "http://localhost:11434/v1"
models = ["llama3.2"]

[boot]
enabled = false
type_delay = "5ms"

[rain]
interval = "80ms"
glyphs = "01"
`,
			check: func(t *testing.T, cfg config) {
				require.Equal(t, "http://localhost:11434/v1", cfg.API.BaseURL)
				require.Equal(t, []string{"llama3.2"}, cfg.API.Models)
				require.False(t, cfg.Boot.Enabled)
				require.Equal(t, 5*time.Millisecond, cfg.Boot.TypeDelay.Duration)
				require.Equal(t, 500*time.Millisecond, cfg.Boot.LineDelay.Duration)
				require.Equal(t, 80*time.Millisecond, cfg.Rain.Interval.Duration)
				require.Equal(t, "01", cfg.Rain.Glyphs)
				require.Equal(t, "#00ff00", cfg.Rain.Bright)
			},
		},
		{
			name:    "bad duration",
			content: "[rain]\ninterval = \"soon\"\n",
			wantErr: true,
		},
		{
			name:    "zero interval",
			content: "[rain]\ninterval = \"0s\"\n",
			wantErr: true,
		},
		{
			name:    "no models",
			content: "[api]\nmodels = []\n",
			wantErr: true,
		},
		{
			name:    "only wide glyphs",
			content: "[rain]\nglyphs = \"日本語\"\n",
			wantErr: true,
		},
		{
			name:    "not toml",
			content: "this is = = not toml",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), configFileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			cfg, err := loadConfig(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigEnvBaseURL(t *testing.T) {
	t.Setenv("TERMINUS_API_BASE", "http://127.0.0.1:8080/v1")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), configFileName))
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8080/v1", cfg.API.BaseURL)
}

func TestConfigHasModel(t *testing.T) {
	cfg := defaultConfig()
	require.True(t, cfg.hasModel(defaultModel))
	require.True(t, cfg.hasModel("gpt-4o"))
	require.False(t, cfg.hasModel("gpt-2"))
}

func TestConfigCheckModel(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.checkModel("chatgpt-4o-latest"))

	err := cfg.checkModel("gpt-2")
	require.ErrorIs(t, err, errInvalidModel)
	require.ErrorContains(t, err, "gpt-4o, chatgpt-4o-latest, gpt-4o-mini")
}
