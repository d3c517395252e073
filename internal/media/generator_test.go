package media

import (
	"context"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyquill/dailyquill/internal/models"
)

func TestRenderImageProducesDecodablePNG(t *testing.T) {
	gen := NewGenerator(t.TempDir())
	item := &models.ContentItem{
		ID:       1,
		Body:     "We are what we repeatedly do. Excellence, then, is not an act, but a habit.",
		Citation: "Will Durant",
	}

	path, err := gen.RenderImage(context.Background(), item)
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	img, err := png.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, canvasWidth, img.Bounds().Dx())
	assert.Equal(t, canvasHeight, img.Bounds().Dy())
}

func TestRenderPlainImageIsIndependentOfDecoration(t *testing.T) {
	gen := NewGenerator(t.TempDir())
	item := &models.ContentItem{ID: 2, Body: "Simplicity."}

	path, err := gen.RenderPlainImage(context.Background(), item)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{
			name:  "short text stays on one line",
			text:  "less is more",
			limit: 34,
			want:  []string{"less is more"},
		},
		{
			name:  "breaks on word boundaries",
			text:  "the quick brown fox jumps over",
			limit: 10,
			want:  []string{"the quick", "brown fox", "jumps over"},
		},
		{
			name:  "empty text yields no lines",
			text:  "   ",
			limit: 10,
			want:  nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, wrapText(tc.text, tc.limit))
		})
	}
}
