package vision

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
	translateapi "google.golang.org/api/translate/v2"

	"github.com/votergrid/votergrid/pkg/devanagari"
)

// Transliterator romanizes a Devanagari name into English spelling.
type Transliterator interface {
	TransliterateName(ctx context.Context, name string) (string, error)
}

// GoogleTranslate romanizes names through the Google Translate API.
// For proper names the hi->en translation returns the romanized
// spelling rather than a translation, which is exactly what the roll
// export needs.
type GoogleTranslate struct {
	service *translateapi.Service
}

// NewGoogleTranslate creates a Translate API client from an API key.
func NewGoogleTranslate(ctx context.Context, apiKey string) (*GoogleTranslate, error) {
	apiKey = strings.Trim(strings.TrimSpace(apiKey), `"'`)
	if apiKey == "" {
		return nil, fmt.Errorf("translate API key is required")
	}

	service, err := translateapi.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Translate API service: %w", err)
	}
	return &GoogleTranslate{service: service}, nil
}

var nameCaser = cases.Title(language.English)

// TransliterateName romanizes one name. An error or a result still in
// Devanagari counts as failure so the caller can fall back to the local
// mapping.
func (g *GoogleTranslate) TransliterateName(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	call := g.service.Translations.List([]string{name}, "en").
		Source("hi").
		Format("text").
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("translate request failed: %w", err)
	}
	if len(resp.Translations) == 0 {
		return "", fmt.Errorf("translate returned no result")
	}

	romanized := strings.TrimSpace(resp.Translations[0].TranslatedText)
	if romanized == "" || devanagari.Contains(romanized) {
		return "", fmt.Errorf("translate result is not romanized")
	}
	return nameCaser.String(strings.ToLower(romanized)), nil
}

// LocalTransliterator is the offline fallback using the character
// mapping in the devanagari package. It never fails.
type LocalTransliterator struct{}

// TransliterateName romanizes using the local mapping.
func (LocalTransliterator) TransliterateName(_ context.Context, name string) (string, error) {
	return devanagari.Transliterate(name), nil
}

// FallbackTransliterator tries providers in order and settles for the
// first success. The local mapping at the end guarantees a result.
type FallbackTransliterator struct {
	Providers []Transliterator
}

// TransliterateName walks the provider chain.
func (f FallbackTransliterator) TransliterateName(ctx context.Context, name string) (string, error) {
	var lastErr error
	for _, p := range f.Providers {
		result, err := p.TransliterateName(ctx, name)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no transliteration providers configured")
	}
	return "", lastErr
}
