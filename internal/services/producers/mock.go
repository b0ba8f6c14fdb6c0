package producers

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"github.com/ternarybob/slidegen/internal/models"
)

// MockProducer simulates slow generation and returns fixed references without
// writing any files. It serves front-end development against a fake backend.
type MockProducer struct {
	jobType models.JobType
	delay   time.Duration
	logger  arbor.ILogger
}

var _ interfaces.Producer = (*MockProducer)(nil)

func NewMockProducer(jobType models.JobType, delay time.Duration, logger arbor.ILogger) *MockProducer {
	return &MockProducer{jobType: jobType, delay: delay, logger: logger}
}

func (p *MockProducer) Run(ctx context.Context, jobID string, payload interface{}) (*interfaces.ProducerOutput, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	switch p.jobType {
	case models.JobTypeOutline:
		req, ok := payload.(*models.OutlineRequest)
		if !ok {
			return nil, fmt.Errorf("mock outline producer: unexpected payload %T", payload)
		}
		length := clampLength(req.Length)
		slides := make([]models.Slide, 0, length)
		for i := 1; i <= length; i++ {
			slides = append(slides, models.Slide{
				Title:   fmt.Sprintf("%s - Slide %d", req.Title, i),
				Bullets: []string{"Sample point 1", "Sample point 2"},
			})
		}
		return &interfaces.ProducerOutput{Slides: slides}, nil

	case models.JobTypeImage:
		return &interfaces.ProducerOutput{URL: fmt.Sprintf("file:///tmp/mock_images/%s.png", jobID)}, nil

	case models.JobTypeDeck:
		return &interfaces.ProducerOutput{URL: fmt.Sprintf("file:///tmp/mock_decks/%s.pdf", jobID)}, nil
	}

	return nil, fmt.Errorf("unknown job type: %s", p.jobType)
}
