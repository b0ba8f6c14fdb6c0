package producers

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"github.com/ternarybob/slidegen/internal/models"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// MaxImageDimension bounds each side of a generated image
const MaxImageDimension = 4096

const maxPromptChars = 80

var sizePattern = regexp.MustCompile(`^(\d+)x(\d+)$`)

type palette struct {
	background color.RGBA
	text       color.RGBA
}

var palettes = map[string]palette{
	"photorealistic": {background: color.RGBA{240, 240, 240, 255}, text: color.RGBA{20, 20, 20, 255}},
	"illustration":   {background: color.RGBA{255, 244, 214, 255}, text: color.RGBA{92, 54, 10, 255}},
	"minimal":        {background: color.RGBA{255, 255, 255, 255}, text: color.RGBA{60, 60, 60, 255}},
	"dark":           {background: color.RGBA{17, 24, 39, 255}, text: color.RGBA{229, 231, 235, 255}},
}

// ParseSize parses "WIDTHxHEIGHT". Both sides must be between 1 and MaxImageDimension.
func ParseSize(size string) (int, int, error) {
	m := sizePattern.FindStringSubmatch(strings.TrimSpace(size))
	if m == nil {
		return 0, 0, fmt.Errorf("invalid size %q: expected WIDTHxHEIGHT, e.g. 1024x1024", size)
	}
	w, errW := strconv.Atoi(m[1])
	h, errH := strconv.Atoi(m[2])
	if errW != nil || errH != nil || w < 1 || h < 1 || w > MaxImageDimension || h > MaxImageDimension {
		return 0, 0, fmt.Errorf("invalid size %q: each side must be between 1 and %d", size, MaxImageDimension)
	}
	return w, h, nil
}

// ImageProducer renders a placeholder PNG carrying the prompt text
type ImageProducer struct {
	scratchDir string
	logger     arbor.ILogger
}

var _ interfaces.Producer = (*ImageProducer)(nil)

// NewImageProducer writes its scratch files to scratchDir ("" uses the OS temp dir)
func NewImageProducer(scratchDir string, logger arbor.ILogger) *ImageProducer {
	return &ImageProducer{scratchDir: scratchDir, logger: logger}
}

func (p *ImageProducer) Run(ctx context.Context, jobID string, payload interface{}) (*interfaces.ProducerOutput, error) {
	req, ok := payload.(*models.ImageRequest)
	if !ok {
		return nil, fmt.Errorf("image producer: unexpected payload %T", payload)
	}

	width, height, err := ParseSize(req.Size)
	if err != nil {
		return nil, err
	}

	img, err := renderPlaceholder(ctx, width, height, req.Prompt, req.Style)
	if err != nil {
		return nil, err
	}

	path, err := writeScratchPNG(p.scratchDir, img)
	if err != nil {
		return nil, err
	}

	p.logger.Debug().
		Str("job_id", jobID).
		Int("width", width).
		Int("height", height).
		Str("path", path).
		Msg("Image generated")

	return &interfaces.ProducerOutput{FilePath: path, FileName: "image.png"}, nil
}

func renderPlaceholder(ctx context.Context, width, height int, prompt, style string) (*image.RGBA, error) {
	pal, ok := palettes[strings.ToLower(style)]
	if !ok {
		pal = palettes[models.DefaultImageStyle]
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		if y%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, pal.background)
		}
	}

	drawText(img, truncateRunes(prompt, maxPromptChars), pal.text)
	return img, nil
}

// drawText wraps text across lines starting at (10, 10)
func drawText(img *image.RGBA, text string, c color.RGBA) {
	const pad = 10
	face := basicfont.Face7x13
	advance := face.Advance
	lineHeight := face.Height

	cols := (img.Bounds().Dx() - 2*pad) / advance
	if cols < 1 || img.Bounds().Dy() < pad+lineHeight {
		return
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
	}

	runes := []rune(text)
	y := pad + face.Ascent
	for len(runes) > 0 && y <= img.Bounds().Dy()-pad {
		n := cols
		if n > len(runes) {
			n = len(runes)
		}
		d.Dot = fixed.P(pad, y)
		d.DrawString(string(runes[:n]))
		runes = runes[n:]
		y += lineHeight
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func writeScratchPNG(dir string, img image.Image) (string, error) {
	f, err := os.CreateTemp(dir, "image-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write png: %w", err)
	}
	return f.Name(), nil
}
