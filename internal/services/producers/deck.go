package producers

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"github.com/ternarybob/slidegen/internal/models"
	"github.com/ternarybob/slidegen/internal/services/pdf"
	"github.com/ternarybob/slidegen/internal/templates"
)

// sampleSlides is used when the outline job cannot be resolved
var sampleSlides = []models.Slide{
	{Title: "Sample Slide 1", Bullets: []string{"Sample point 1", "Sample point 2"}},
	{Title: "Sample Slide 2", Bullets: []string{"Sample point 1", "Sample point 2"}},
	{Title: "Sample Slide 3", Bullets: []string{"Sample point 1", "Sample point 2"}},
}

// DeckProducer assembles a PDF deck from a finished outline job and image jobs
type DeckProducer struct {
	jobs       interfaces.JobReader
	store      interfaces.ArtifactStore
	renderer   *pdf.Service
	templates  *templates.Loader
	scratchDir string
	logger     arbor.ILogger
}

var _ interfaces.Producer = (*DeckProducer)(nil)

func NewDeckProducer(
	jobs interfaces.JobReader,
	store interfaces.ArtifactStore,
	renderer *pdf.Service,
	templateLoader *templates.Loader,
	scratchDir string,
	logger arbor.ILogger,
) *DeckProducer {
	return &DeckProducer{
		jobs:       jobs,
		store:      store,
		renderer:   renderer,
		templates:  templateLoader,
		scratchDir: scratchDir,
		logger:     logger,
	}
}

func (p *DeckProducer) Run(ctx context.Context, jobID string, payload interface{}) (*interfaces.ProducerOutput, error) {
	req, ok := payload.(*models.DeckRequest)
	if !ok {
		return nil, fmt.Errorf("deck producer: unexpected payload %T", payload)
	}

	logger := p.logger.WithCorrelationId(jobID)

	tmpl, found, err := p.templates.Get(req.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %q: %w", req.Template, err)
	}
	if !found {
		logger.Warn().Str("template", req.Template).Msg("Unknown template, using default")
	}

	deck := p.buildDeck(req, logger)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := p.renderer.RenderDeck(deck, tmpl)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(p.scratchDir, "deck-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	path := f.Name()
	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write deck: %v", firstErr(writeErr, closeErr))
	}

	if err := p.renderer.Verify(path, deck.PageCount()); err != nil {
		os.Remove(path)
		return nil, err
	}

	logger.Debug().
		Int("pages", deck.PageCount()).
		Int("bytes", len(data)).
		Msg("Deck generated")

	return &interfaces.ProducerOutput{FilePath: path, FileName: "deck.pdf"}, nil
}

// buildDeck resolves the outline and images. Problems with referenced jobs
// degrade the deck instead of failing it.
func (p *DeckProducer) buildDeck(req *models.DeckRequest, logger arbor.ILogger) *pdf.Deck {
	deck := &pdf.Deck{}

	slides, title, audience := p.resolveOutline(req.OutlineID, logger)
	deck.Title = title
	if audience != "" {
		deck.Subtitle = "Prepared for " + audience
	}

	if v, ok := req.Options["title"].(string); ok && v != "" {
		deck.Title = v
	}
	if v, ok := req.Options["subtitle"].(string); ok && v != "" {
		deck.Subtitle = v
	}

	deck.Slides = make([]pdf.Slide, len(slides))
	for i, s := range slides {
		deck.Slides[i] = pdf.Slide{Title: s.Title, Bullets: s.Bullets}
	}

	for _, ref := range req.Images {
		if ref.Slide < 1 || ref.Slide > len(deck.Slides) {
			logger.Warn().
				Int("slide", ref.Slide).
				Str("image_job", ref.ImageJob).
				Msg("Image references a slide outside the deck, skipping")
			continue
		}
		path, ok := p.resolveImage(ref.ImageJob, logger)
		if !ok {
			continue
		}
		deck.Slides[ref.Slide-1].ImagePath = path
	}

	return deck
}

func (p *DeckProducer) resolveOutline(outlineID string, logger arbor.ILogger) ([]models.Slide, string, string) {
	job, found := p.jobs.Get(outlineID)
	switch {
	case !found:
		logger.Warn().Str("outline_id", outlineID).Msg("Outline job not found, using sample slides")
	case job.Type != models.JobTypeOutline:
		logger.Warn().Str("outline_id", outlineID).Str("type", string(job.Type)).Msg("Referenced job is not an outline, using sample slides")
	case job.Status != models.JobStatusDone || job.Result == nil || len(job.Result.Slides) == 0:
		logger.Warn().Str("outline_id", outlineID).Str("status", string(job.Status)).Msg("Outline not finished, using sample slides")
	default:
		title, audience := "", ""
		if req, ok := job.Payload.(*models.OutlineRequest); ok {
			title, audience = req.Title, req.Audience
		}
		return job.Result.Slides, title, audience
	}

	return (&models.JobResult{Slides: sampleSlides}).Clone().Slides, "", ""
}

func (p *DeckProducer) resolveImage(imageJobID string, logger arbor.ILogger) (string, bool) {
	job, found := p.jobs.Get(imageJobID)
	if !found || job.Type != models.JobTypeImage || job.Status != models.JobStatusDone || job.Result == nil {
		logger.Warn().Str("image_job", imageJobID).Msg("Image job not available, skipping")
		return "", false
	}

	path, err := p.store.LocalPath(job.Result.ImageURL)
	if err != nil {
		logger.Warn().Err(err).Str("image_job", imageJobID).Msg("Image artifact not readable, skipping")
		return "", false
	}
	if !pdf.UsableImage(path) {
		logger.Warn().Str("image_job", imageJobID).Str("path", path).Msg("Image artifact is not a usable image, skipping")
		return "", false
	}
	return path, true
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
