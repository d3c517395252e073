package media

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/dailyquill/dailyquill/internal/models"
)

// Generator renders content into publishable media files. RenderImage
// may fail on decoration assets; RenderPlainImage is the fallback the
// scheduler uses so a cycle never dies on rendering alone.
type Generator interface {
	RenderImage(ctx context.Context, item *models.ContentItem) (string, error)
	RenderPlainImage(ctx context.Context, item *models.ContentItem) (string, error)
	RenderVideo(ctx context.Context, item *models.ContentItem) (string, error)
}

const (
	canvasWidth  = 1080
	canvasHeight = 1080
	lineLimit    = 34
	videoSeconds = 8
)

type generator struct {
	outDir     string
	background color.RGBA
	ffmpegPath string
}

func NewGenerator(outDir string) Generator {
	return &generator{
		outDir:     outDir,
		background: color.RGBA{R: 24, G: 32, B: 54, A: 255},
		ffmpegPath: "ffmpeg",
	}
}

func (g *generator) RenderImage(ctx context.Context, item *models.ContentItem) (string, error) {
	return g.render(item, g.background)
}

// RenderPlainImage draws on a neutral background with no decoration.
func (g *generator) RenderPlainImage(ctx context.Context, item *models.ContentItem) (string, error) {
	return g.render(item, color.RGBA{R: 245, G: 245, B: 245, A: 255})
}

// RenderVideo turns the rendered image into a short still clip. It
// needs ffmpeg on the path; callers treat the error as "no video this
// cycle", not as a failed post.
func (g *generator) RenderVideo(ctx context.Context, item *models.ContentItem) (string, error) {
	imagePath, err := g.render(item, g.background)
	if err != nil {
		return "", err
	}

	videoPath := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".mp4"
	cmd := exec.CommandContext(ctx, g.ffmpegPath,
		"-y", "-loop", "1", "-i", imagePath,
		"-t", fmt.Sprintf("%d", videoSeconds),
		"-vf", "format=yuv420p",
		"-c:v", "libx264", videoPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg: %w: %s", err, string(out))
	}
	return videoPath, nil
}

func (g *generator) render(item *models.ContentItem, bg color.RGBA) (string, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	textColor := color.RGBA{R: 235, G: 235, B: 235, A: 255}
	if bg.R > 128 {
		textColor = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	}

	lines := wrapText(item.Body, lineLimit)
	if item.Citation != "" {
		lines = append(lines, "", "- "+item.Citation)
	}
	drawLines(canvas, lines, textColor)

	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(g.outDir, fmt.Sprintf("quote-%d.png", item.ID))
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := png.Encode(file, canvas); err != nil {
		return "", err
	}
	return path, nil
}

func drawLines(canvas *image.RGBA, lines []string, c color.RGBA) {
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil() + 6
	startY := canvasHeight/2 - (len(lines)*lineHeight)/2

	for i, line := range lines {
		width := font.MeasureString(face, line).Ceil()
		drawer := &font.Drawer{
			Dst:  canvas,
			Src:  image.NewUniform(c),
			Face: face,
			Dot: fixed.P(
				(canvasWidth-width)/2,
				startY+i*lineHeight,
			),
		}
		drawer.DrawString(line)
	}
}

// wrapText breaks on word boundaries at roughly limit characters.
func wrapText(text string, limit int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) > limit {
			lines = append(lines, current)
			current = word
			continue
		}
		current += " " + word
	}
	return append(lines, current)
}
