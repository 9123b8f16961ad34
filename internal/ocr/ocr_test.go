package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himawari-tools/line-secretary/internal/cache"
	"github.com/himawari-tools/line-secretary/internal/model"
)

func tinyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestValidateImage(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}
	webp := append([]byte("RIFF"), 0, 0, 0, 0, 'W', 'E', 'B', 'P')

	oversize := make([]byte, MaxImageBytes+1)
	copy(oversize, pngMagic)

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"png", tinyPNG(t, 4, 4), false},
		{"jpeg", jpeg, false},
		{"webp", webp, false},
		{"empty", nil, true},
		{"oversize", oversize, true},
		{"garbage", []byte("not an image"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDetectLayout(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		layout string
	}{
		{"instagram portrait", 1080, 1920, "instagram"},
		{"tiktok portrait", 1240, 1920, "tiktok"},
		{"youtube frame", 1920, 1080, "youtube"},
		{"twitter card", 1200, 1200, "twitter"},
		{"tall strip", 100, 400, "general"},
		{"unknown dims", 0, 0, "general"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.layout, DetectLayout(tt.w, tt.h).Name)
		})
	}
}

// The instagram and tiktok bands overlap between 0.55 and 0.60; the
// scan order resolves the tie to instagram.
func TestDetectLayoutOverlapOrder(t *testing.T) {
	assert.Equal(t, "instagram", DetectLayout(580, 1000).Name)
}

func TestCleanupText(t *testing.T) {
	in := "今日のランチ🍜\n1,234 いいね   56 コメント\nフォローする\nもっと見る\n\n\n美味しかった"
	got := CleanupText(in)
	assert.NotContains(t, got, "いいね")
	assert.NotContains(t, got, "コメント")
	assert.NotContains(t, got, "もっと見る")
	assert.Contains(t, got, "今日のランチ")
	assert.Contains(t, got, "美味しかった")
	assert.NotContains(t, got, "\n\n")
}

func testService(t *testing.T, providers []provider) *Service {
	t.Helper()
	return &Service{
		providers: providers,
		cache:     cache.New[string, *Result](DefaultCacheTTL),
		log:       zerolog.Nop(),
	}
}

func staticProvider(name string, cost, accuracy float64, text string) provider {
	return provider{
		name: name, cost: cost, accuracy: accuracy,
		run: func(context.Context, []byte) (*Result, error) {
			return &Result{Text: text, Confidence: accuracy, Language: "ja"}, nil
		},
	}
}

func TestSelectProvider(t *testing.T) {
	s := testService(t, []provider{
		staticProvider("googleVision", 1.5, 0.95, "g"),
		staticProvider("azureRead", 1.0, 0.93, "a"),
		staticProvider("local", 0, 0.5, ""),
	})

	t.Run("most accurate within default ceiling", func(t *testing.T) {
		p, err := s.selectProvider(Options{})
		require.NoError(t, err)
		assert.Equal(t, "googleVision", p.name)
	})

	t.Run("cost ceiling excludes paid providers", func(t *testing.T) {
		p, err := s.selectProvider(Options{MaxCost: 0.5})
		require.NoError(t, err)
		assert.Equal(t, "local", p.name)
	})

	t.Run("preferred provider wins", func(t *testing.T) {
		p, err := s.selectProvider(Options{PreferredProvider: "azureRead"})
		require.NoError(t, err)
		assert.Equal(t, "azureRead", p.name)
	})

	t.Run("unknown preferred falls through", func(t *testing.T) {
		p, err := s.selectProvider(Options{PreferredProvider: "tesseract"})
		require.NoError(t, err)
		assert.Equal(t, "googleVision", p.name)
	})
}

func TestExtractTextCaching(t *testing.T) {
	ctx := context.Background()
	s := testService(t, []provider{staticProvider("googleVision", 1.5, 0.95, "駅前で18時")})
	img := tinyPNG(t, 8, 8)

	first, err := s.ExtractTextFromImage(ctx, img, Options{})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "駅前で18時", first.Text)
	assert.Equal(t, "googleVision", first.Provider)

	second, err := s.ExtractTextFromImage(ctx, img, Options{})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Text, second.Text)

	forced, err := s.ExtractTextFromImage(ctx, img, Options{ForceReprocess: true})
	require.NoError(t, err)
	assert.False(t, forced.FromCache)
}

func TestExtractTextRejectsInvalid(t *testing.T) {
	s := testService(t, []provider{staticProvider("local", 0, 0.5, "")})
	_, err := s.ExtractTextFromImage(context.Background(), []byte("bogus"), Options{})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSweepCache(t *testing.T) {
	now := time.Now()
	c := cache.NewWithClock[string, *Result](time.Minute, func() time.Time { return now })
	s := &Service{cache: c, log: zerolog.Nop()}
	c.Set("k", &Result{Text: "x"})

	assert.Equal(t, 0, s.SweepCache())
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, s.SweepCache())
	assert.Equal(t, 0, c.Len())
}

func TestPreprocessCropsKnownLayout(t *testing.T) {
	img := tinyPNG(t, 540, 960) // instagram band
	layout := DetectLayout(540, 960)
	require.Equal(t, "instagram", layout.Name)

	_, steps := preprocess(img, layout)
	if len(steps) > 0 {
		assert.Contains(t, steps, "grayscale")
	}
}
