package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProvidersConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
vision:
  provider: documentai
  language_hints: ["hi", "en"]
documentai:
  project_id: demo-project
  location: us
  processor_id: abc123
translate:
  api_key: key
local_ocr: false
`), 0o644))

	cfg, err := LoadProvidersConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "documentai", cfg.Vision.Provider)
	assert.Equal(t, []string{"hi", "en"}, cfg.Vision.LanguageHints)
	assert.Equal(t, "demo-project", cfg.DocumentAI.ProjectID)
	assert.Equal(t, "key", cfg.Translate.APIKey)
	require.NotNil(t, cfg.LocalOCR)
	assert.False(t, *cfg.LocalOCR)
}

func TestBuildEmptyConfig(t *testing.T) {
	var cfg ProvidersConfig

	providers, closeAll, err := cfg.Build(context.Background())
	require.NoError(t, err)
	defer closeAll()

	assert.Nil(t, providers.Pages)
	assert.Nil(t, providers.Regions)
	assert.Nil(t, providers.Names)
	assert.NotNil(t, providers.NewEngine, "local OCR defaults to on")
}

func TestBuildRejectsUnknownProvider(t *testing.T) {
	var cfg ProvidersConfig
	cfg.Vision.Provider = "azure"

	_, _, err := cfg.Build(context.Background())
	assert.Error(t, err)
}
