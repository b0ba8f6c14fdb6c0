package producers

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"github.com/ternarybob/slidegen/internal/models"
)

// MaxOutlineLength caps the number of generated slides
const MaxOutlineLength = 50

// OutlineProducer generates a deterministic placeholder outline
type OutlineProducer struct {
	logger arbor.ILogger
}

var _ interfaces.Producer = (*OutlineProducer)(nil)

func NewOutlineProducer(logger arbor.ILogger) *OutlineProducer {
	return &OutlineProducer{logger: logger}
}

func (p *OutlineProducer) Run(ctx context.Context, jobID string, payload interface{}) (*interfaces.ProducerOutput, error) {
	req, ok := payload.(*models.OutlineRequest)
	if !ok {
		return nil, fmt.Errorf("outline producer: unexpected payload %T", payload)
	}

	slides := BuildOutline(req)

	p.logger.Debug().
		Str("job_id", jobID).
		Int("slides", len(slides)).
		Msg("Outline generated")

	return &interfaces.ProducerOutput{Slides: slides}, ctx.Err()
}

// BuildOutline returns clampLength(req.Length) slides titled "<title> - Slide i",
// each with three bullets shaped by audience and style.
func BuildOutline(req *models.OutlineRequest) []models.Slide {
	length := clampLength(req.Length)

	audience := req.Audience
	if audience == "" {
		audience = "a general audience"
	}
	style := req.Style
	if style == "" {
		style = models.DefaultOutlineStyle
	}

	slides := make([]models.Slide, 0, length)
	for i := 1; i <= length; i++ {
		slides = append(slides, models.Slide{
			Title: fmt.Sprintf("%s - Slide %d", req.Title, i),
			Bullets: []string{
				fmt.Sprintf("**Key point %d** for %s", i, audience),
				fmt.Sprintf("Supporting detail in a *%s* style", style),
				fmt.Sprintf("Takeaway %d", i),
			},
		})
	}
	return slides
}

func clampLength(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxOutlineLength {
		return MaxOutlineLength
	}
	return n
}
