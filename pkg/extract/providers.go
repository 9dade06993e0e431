package extract

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/votergrid/votergrid/pkg/ocr"
	"github.com/votergrid/votergrid/pkg/vision"
)

// ProvidersConfig is the YAML credentials file wiring cloud providers
// into a run. Everything is optional: with an empty file the pipeline
// runs on the text layer and local OCR alone.
type ProvidersConfig struct {
	Vision struct {
		// Provider selects the page annotator: "google", "documentai"
		// or empty for none.
		Provider      string   `yaml:"provider"`
		Credentials   string   `yaml:"credentials"`
		LanguageHints []string `yaml:"language_hints"`
	} `yaml:"vision"`

	DocumentAI vision.DocumentAIConfig `yaml:"documentai"`

	Translate struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"translate"`

	// LocalOCR enables the Tesseract engine. Defaults to on.
	LocalOCR *bool `yaml:"local_ocr"`
}

// LoadProvidersConfig reads the YAML credentials file.
func LoadProvidersConfig(path string) (*ProvidersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers config: %w", err)
	}
	var cfg ProvidersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse providers config: %w", err)
	}
	return &cfg, nil
}

// Build constructs the provider set. The returned func closes any
// clients that hold connections and is safe to call once.
func (c *ProvidersConfig) Build(ctx context.Context) (Providers, func(), error) {
	var providers Providers
	var closers []func()
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}

	switch c.Vision.Provider {
	case "", "none":
	case "google":
		client, err := vision.NewGoogleVision(ctx, c.Vision.Credentials,
			vision.WithLanguageHints(c.Vision.LanguageHints))
		if err != nil {
			return Providers{}, nil, fmt.Errorf("google vision: %w", err)
		}
		providers.Pages = client
		providers.Regions = client
	case "documentai":
		client, err := vision.NewDocumentAI(ctx, c.DocumentAI)
		if err != nil {
			return Providers{}, nil, fmt.Errorf("document AI: %w", err)
		}
		providers.Pages = client
		providers.Regions = client
		closers = append(closers, func() { client.Close() })
	default:
		return Providers{}, nil, fmt.Errorf("unknown vision provider %q", c.Vision.Provider)
	}

	if c.Translate.APIKey != "" {
		translate, err := vision.NewGoogleTranslate(ctx, c.Translate.APIKey)
		if err != nil {
			closeAll()
			return Providers{}, nil, fmt.Errorf("google translate: %w", err)
		}
		providers.Names = vision.FallbackTransliterator{
			Providers: []vision.Transliterator{translate, vision.LocalTransliterator{}},
		}
	}

	if c.LocalOCR == nil || *c.LocalOCR {
		providers.NewEngine = func() (ocr.Engine, error) {
			return ocr.NewTesseract()
		}
	}

	return providers, closeAll, nil
}
