package producers

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"github.com/ternarybob/slidegen/internal/models"
	"github.com/ternarybob/slidegen/internal/services/pdf"
	"github.com/ternarybob/slidegen/internal/templates"
)

type fakeJobs map[string]models.Job

func (f fakeJobs) Get(id string) (models.Job, bool) {
	job, ok := f[id]
	return job, ok
}

// pathStore treats refs as "file://" + absolute path
type pathStore struct{}

func (pathStore) Store(ctx context.Context, src, jobID, name string) (string, error) {
	return "file://" + src, nil
}

func (pathStore) LocalPath(ref string) (string, error) {
	if !strings.HasPrefix(ref, "file://") {
		return "", interfaces.ErrArtifactNotFound
	}
	path := strings.TrimPrefix(ref, "file://")
	if _, err := os.Stat(path); err != nil {
		return "", interfaces.ErrArtifactNotFound
	}
	return path, nil
}

func TestBuildOutline(t *testing.T) {
	slides := BuildOutline(&models.OutlineRequest{Title: "Q3 Review", Length: 3})

	require.Len(t, slides, 3)
	for i, s := range slides {
		assert.Equal(t, "Q3 Review - Slide "+string(rune('1'+i)), s.Title)
		assert.Len(t, s.Bullets, 3)
	}
	assert.Contains(t, slides[0].Bullets[0], "a general audience")
}

func TestBuildOutline_Clamp(t *testing.T) {
	assert.Len(t, BuildOutline(&models.OutlineRequest{Title: "x", Length: 0}), 1)
	assert.Len(t, BuildOutline(&models.OutlineRequest{Title: "x", Length: 500}), MaxOutlineLength)
}

func TestOutlineProducer_WrongPayload(t *testing.T) {
	p := NewOutlineProducer(arbor.NewLogger())

	_, err := p.Run(context.Background(), "job-1", "not a request")
	assert.Error(t, err)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		size    string
		w, h    int
		wantErr bool
	}{
		{size: "1024x1024", w: 1024, h: 1024},
		{size: "640x480", w: 640, h: 480},
		{size: " 1x1 ", w: 1, h: 1},
		{size: "huge", wantErr: true},
		{size: "0x10", wantErr: true},
		{size: "10x", wantErr: true},
		{size: "-5x10", wantErr: true},
		{size: "5000x10", wantErr: true},
		{size: "99999999999999999999x1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.size, func(t *testing.T) {
			w, h, err := ParseSize(tt.size)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
}

func TestImageProducer_WritesPNG(t *testing.T) {
	dir := t.TempDir()
	p := NewImageProducer(dir, arbor.NewLogger())

	out, err := p.Run(context.Background(), "job-1", &models.ImageRequest{
		Prompt: "a lighthouse at dusk",
		Size:   "64x32",
		Style:  "dark",
	})
	require.NoError(t, err)
	assert.Equal(t, "image.png", out.FileName)
	assert.Equal(t, dir, filepath.Dir(out.FilePath))

	f, err := os.Open(out.FilePath)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 32, cfg.Height)
}

func TestImageProducer_InvalidSize(t *testing.T) {
	dir := t.TempDir()
	p := NewImageProducer(dir, arbor.NewLogger())

	_, err := p.Run(context.Background(), "job-1", &models.ImageRequest{Prompt: "x", Size: "huge"})
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImageProducer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewImageProducer(t.TempDir(), arbor.NewLogger())
	_, err := p.Run(ctx, "job-1", &models.ImageRequest{Prompt: "x", Size: "64x64"})
	assert.ErrorIs(t, err, context.Canceled)
}

func newDeckProducer(t *testing.T, jobs fakeJobs) (*DeckProducer, string) {
	t.Helper()
	dir := t.TempDir()
	logger := arbor.NewLogger()
	p := NewDeckProducer(jobs, pathStore{}, pdf.NewService(logger), templates.NewLoader(""), dir, logger)
	return p, dir
}

func TestDeckProducer_ResolvesOutlineAndImages(t *testing.T) {
	imageDir := t.TempDir()
	imageOut, err := NewImageProducer(imageDir, arbor.NewLogger()).Run(context.Background(), "img-1",
		&models.ImageRequest{Prompt: "chart", Size: "32x32"})
	require.NoError(t, err)

	jobs := fakeJobs{
		"outline-1": {
			ID:      "outline-1",
			Type:    models.JobTypeOutline,
			Status:  models.JobStatusDone,
			Payload: &models.OutlineRequest{Title: "Q3 Review", Audience: "execs"},
			Result:  &models.JobResult{Slides: BuildOutline(&models.OutlineRequest{Title: "Q3 Review", Length: 2})},
		},
		"img-1": {
			ID:     "img-1",
			Type:   models.JobTypeImage,
			Status: models.JobStatusDone,
			Result: &models.JobResult{ImageURL: "file://" + imageOut.FilePath},
		},
	}

	p, dir := newDeckProducer(t, jobs)
	req := &models.DeckRequest{
		OutlineID: "outline-1",
		Images: []models.ImageRef{
			{Slide: 1, ImageJob: "img-1"},
			{Slide: 9, ImageJob: "img-1"},
			{Slide: 2, ImageJob: "missing"},
		},
		Template: "dark",
	}

	deck := p.buildDeck(req, arbor.NewLogger())
	assert.Equal(t, "Q3 Review", deck.Title)
	assert.Equal(t, "Prepared for execs", deck.Subtitle)
	require.Len(t, deck.Slides, 2)
	assert.Equal(t, imageOut.FilePath, deck.Slides[0].ImagePath)
	assert.Empty(t, deck.Slides[1].ImagePath)

	out, err := p.Run(context.Background(), "deck-1", req)
	require.NoError(t, err)
	assert.Equal(t, "deck.pdf", out.FileName)
	assert.Equal(t, dir, filepath.Dir(out.FilePath))
	assert.NoError(t, pdf.NewService(arbor.NewLogger()).Verify(out.FilePath, 3))
}

func TestDeckProducer_FallsBackToSampleSlides(t *testing.T) {
	jobs := fakeJobs{
		"running": {ID: "running", Type: models.JobTypeOutline, Status: models.JobStatusRunning},
		"img":     {ID: "img", Type: models.JobTypeImage, Status: models.JobStatusDone, Result: &models.JobResult{ImageURL: "file:///nope.png"}},
	}
	p, _ := newDeckProducer(t, jobs)

	for _, id := range []string{"unknown", "running", "img"} {
		t.Run(id, func(t *testing.T) {
			deck := p.buildDeck(&models.DeckRequest{OutlineID: id}, arbor.NewLogger())
			require.Len(t, deck.Slides, 3)
			assert.Equal(t, "Sample Slide 1", deck.Slides[0].Title)
			assert.Empty(t, deck.Title)
		})
	}

	out, err := p.Run(context.Background(), "deck-1", &models.DeckRequest{
		OutlineID: "unknown",
		Options:   map[string]interface{}{"title": "Override"},
	})
	require.NoError(t, err)
	assert.NoError(t, pdf.NewService(arbor.NewLogger()).Verify(out.FilePath, 4))
}

func TestDeckProducer_UnknownTemplateUsesDefault(t *testing.T) {
	p, _ := newDeckProducer(t, fakeJobs{})

	out, err := p.Run(context.Background(), "deck-1", &models.DeckRequest{OutlineID: "x", Template: "neon"})
	require.NoError(t, err)
	assert.FileExists(t, out.FilePath)
}

func TestMockProducer(t *testing.T) {
	logger := arbor.NewLogger()

	outline, err := NewMockProducer(models.JobTypeOutline, 0, logger).
		Run(context.Background(), "o-1", &models.OutlineRequest{Title: "Demo", Length: 2})
	require.NoError(t, err)
	require.Len(t, outline.Slides, 2)
	assert.Equal(t, []string{"Sample point 1", "Sample point 2"}, outline.Slides[1].Bullets)

	image, err := NewMockProducer(models.JobTypeImage, 0, logger).
		Run(context.Background(), "i-1", &models.ImageRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/mock_images/i-1.png", image.URL)

	deck, err := NewMockProducer(models.JobTypeDeck, 0, logger).
		Run(context.Background(), "d-1", &models.DeckRequest{OutlineID: "o-1"})
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/mock_decks/d-1.pdf", deck.URL)
}

func TestMockProducer_DelayRespectsCancellation(t *testing.T) {
	p := NewMockProducer(models.JobTypeImage, time.Hour, arbor.NewLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Run(ctx, "i-1", &models.ImageRequest{Prompt: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
