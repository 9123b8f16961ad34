// Package ocr extracts text from chat images. Costs are kept down by
// preprocessing (crop to the likely text region, grayscale), caching by
// content hash, and choosing the cheapest provider that satisfies the
// caller's cost ceiling.
package ocr

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/himawari-tools/line-secretary/internal/cache"
	"github.com/himawari-tools/line-secretary/internal/model"
)

// MaxImageBytes is the accepted upload ceiling.
const MaxImageBytes = 4 * 1024 * 1024

// DefaultCacheTTL is how long a content-hash entry stays valid.
const DefaultCacheTTL = 24 * time.Hour

// Result is the outcome of one extraction.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
	Provider   string  `json:"provider"`
	// Optimizations lists the preprocessing steps that were applied.
	Optimizations []string `json:"optimizations,omitempty"`
	EstimatedCost float64  `json:"estimatedCost"`
	FromCache     bool     `json:"fromCache"`
}

// Options tunes one extraction call.
type Options struct {
	// PreferredProvider forces a provider when it is configured.
	PreferredProvider string
	// MaxCost caps the per-1000-images USD cost of the chosen provider.
	// Zero means the default ceiling (effectively unlimited).
	MaxCost float64
	// ForceReprocess bypasses the content-hash cache.
	ForceReprocess bool
}

// provider is a configured OCR backend with its static cost/accuracy
// entry. Selection picks the most accurate provider within budget.
type provider struct {
	name     string
	cost     float64 // USD per 1000 images
	accuracy float64
	run      func(ctx context.Context, image []byte) (*Result, error)
}

// Extractor is the surface the bot depends on.
type Extractor interface {
	ExtractTextFromImage(ctx context.Context, image []byte, opts Options) (*Result, error)
}

// Service implements Extractor. The cache is injected and swept by the
// owner (the worker schedules Sweep); the service never starts timers.
type Service struct {
	providers []provider
	cache     *cache.TTL[string, *Result]
	log       zerolog.Logger
}

// Config carries provider credentials. Providers with empty credentials
// are not registered; the zero-cost local fallback is always present.
type Config struct {
	GoogleVisionAPIKey  string
	AzureVisionEndpoint string
	AzureVisionKey      string
}

// NewService builds an OCR service with the given result cache.
func NewService(cfg Config, c *cache.TTL[string, *Result], log zerolog.Logger) *Service {
	s := &Service{cache: c, log: log}
	if cfg.GoogleVisionAPIKey != "" {
		g := newGoogleVision(cfg.GoogleVisionAPIKey)
		s.providers = append(s.providers, provider{
			name: "googleVision", cost: 1.5, accuracy: 0.95, run: g.run,
		})
	}
	if cfg.AzureVisionEndpoint != "" && cfg.AzureVisionKey != "" {
		a := newAzureRead(cfg.AzureVisionEndpoint, cfg.AzureVisionKey)
		s.providers = append(s.providers, provider{
			name: "azureRead", cost: 1.0, accuracy: 0.93, run: a.run,
		})
	}
	s.providers = append(s.providers, provider{
		name: "local", cost: 0, accuracy: 0.5, run: runLocal,
	})
	return s
}

// SweepCache drops expired cache entries and returns the count.
func (s *Service) SweepCache() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Sweep()
}

// ExtractTextFromImage validates, preprocesses and OCRs an image.
func (s *Service) ExtractTextFromImage(ctx context.Context, image []byte, opts Options) (*Result, error) {
	if err := ValidateImage(image); err != nil {
		return nil, err
	}

	hash := contentHash(image)
	if !opts.ForceReprocess && s.cache != nil {
		if cached, ok := s.cache.Get(hash); ok {
			out := *cached
			out.FromCache = true
			return &out, nil
		}
	}

	layout := DetectLayout(imageDimensions(image))
	processed, optimizations := preprocess(image, layout)

	p, err := s.selectProvider(opts)
	if err != nil {
		return nil, err
	}

	res, err := p.run(ctx, processed)
	if err != nil {
		return nil, fmt.Errorf("ocr provider %s: %w", p.name, err)
	}
	res.Provider = p.name
	res.Optimizations = optimizations
	res.EstimatedCost = p.cost / 1000
	res.Text = CleanupText(res.Text)

	if s.cache != nil {
		s.cache.Set(hash, res)
	}
	return res, nil
}

// selectProvider returns the preferred provider when configured, else
// the most accurate one within the cost ceiling.
func (s *Service) selectProvider(opts Options) (provider, error) {
	if opts.PreferredProvider != "" {
		for _, p := range s.providers {
			if p.name == opts.PreferredProvider {
				return p, nil
			}
		}
	}
	maxCost := opts.MaxCost
	if maxCost <= 0 {
		maxCost = 10.0
	}
	candidates := make([]provider, 0, len(s.providers))
	for _, p := range s.providers {
		if p.cost <= maxCost {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return provider{}, fmt.Errorf("%w: no OCR provider within cost ceiling", model.ErrValidation)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].accuracy > candidates[j].accuracy
	})
	return candidates[0], nil
}

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// ValidateImage checks size and magic bytes (PNG, JPEG, WebP).
func ValidateImage(image []byte) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: image data is empty", model.ErrValidation)
	}
	if len(image) > MaxImageBytes {
		return fmt.Errorf("%w: image exceeds %d bytes", model.ErrValidation, MaxImageBytes)
	}
	if bytes.HasPrefix(image, pngMagic) || bytes.HasPrefix(image, jpegMagic) {
		return nil
	}
	if len(image) >= 12 && bytes.Equal(image[0:4], []byte("RIFF")) && bytes.Equal(image[8:12], []byte("WEBP")) {
		return nil
	}
	return fmt.Errorf("%w: unsupported image format (PNG, JPEG, WebP only)", model.ErrValidation)
}

func contentHash(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

var uiNoisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d+\s*(いいね|likes?)`),
	regexp.MustCompile(`(?i)\d+\s*(コメント|comments?)`),
	regexp.MustCompile(`(?i)\d+\s*(シェア|shares?)`),
	regexp.MustCompile(`(?i)\d+\s*(再生|views?)`),
	regexp.MustCompile(`(?i)フォロー|follow(ing)?`),
	regexp.MustCompile(`(?i)ストーリー|story|stories`),
	regexp.MustCompile(`もっと見る`),
	regexp.MustCompile(`(?i)see more`),
}

var multiSpaceRe = regexp.MustCompile(`[ \t]+`)
var blankLineRe = regexp.MustCompile(`\n\s*\n`)

// CleanupText strips platform UI noise and normalizes whitespace.
func CleanupText(text string) string {
	cleaned := text
	for _, re := range uiNoisePatterns {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = multiSpaceRe.ReplaceAllString(cleaned, " ")
	cleaned = blankLineRe.ReplaceAllString(cleaned, "\n")
	return strings.TrimSpace(cleaned)
}
