package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"github.com/ternarybob/slidegen/internal/models"
	"github.com/ternarybob/slidegen/internal/services/llm"
)

// ErrMalformedOutline is returned when the model reply cannot be read as slides
var ErrMalformedOutline = errors.New("model returned a malformed outline")

const outlineSystemPrompt = `You write presentation outlines.
Reply with a JSON object of the form {"slides":[{"title":"...","bullets":["..."]}]}.
Use 2 to 5 short bullets per slide. Bullets may use **bold** and *italic* markdown.`

// LLMOutlineProducer asks a language model for the outline
type LLMOutlineProducer struct {
	generator llm.Generator
	logger    arbor.ILogger
}

var _ interfaces.Producer = (*LLMOutlineProducer)(nil)

func NewLLMOutlineProducer(generator llm.Generator, logger arbor.ILogger) *LLMOutlineProducer {
	return &LLMOutlineProducer{generator: generator, logger: logger}
}

func (p *LLMOutlineProducer) Run(ctx context.Context, jobID string, payload interface{}) (*interfaces.ProducerOutput, error) {
	req, ok := payload.(*models.OutlineRequest)
	if !ok {
		return nil, fmt.Errorf("llm outline producer: unexpected payload %T", payload)
	}

	length := clampLength(req.Length)
	resp, err := p.generator.Generate(ctx, &llm.Request{
		System: outlineSystemPrompt,
		Prompt: outlinePrompt(req, length),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	slides, err := ParseOutline(resp.Text, length)
	if err != nil {
		p.logger.Warn().
			Str("job_id", jobID).
			Str("provider", string(resp.Provider)).
			Err(err).
			Msg("Unusable outline from model")
		return nil, err
	}

	p.logger.Debug().
		Str("job_id", jobID).
		Str("provider", string(resp.Provider)).
		Str("model", resp.Model).
		Int("slides", len(slides)).
		Msg("Outline generated")

	return &interfaces.ProducerOutput{Slides: slides}, nil
}

func outlinePrompt(req *models.OutlineRequest, length int) string {
	audience := req.Audience
	if audience == "" {
		audience = "a general audience"
	}
	style := req.Style
	if style == "" {
		style = models.DefaultOutlineStyle
	}
	return fmt.Sprintf("Create a %d-slide outline titled %q for %s in a %s style.", length, req.Title, audience, style)
}

// ParseOutline reads the model reply. Code fences are tolerated, extra
// slides beyond max are dropped and untitled slides get "Slide i".
func ParseOutline(text string, max int) ([]models.Slide, error) {
	text = stripCodeFence(text)

	var reply struct {
		Slides []models.Slide `json:"slides"`
	}
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		// some models answer with a bare array
		if arrErr := json.Unmarshal([]byte(text), &reply.Slides); arrErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutline, err)
		}
	}
	if len(reply.Slides) == 0 {
		return nil, fmt.Errorf("%w: no slides", ErrMalformedOutline)
	}
	if max > 0 && len(reply.Slides) > max {
		reply.Slides = reply.Slides[:max]
	}

	for i := range reply.Slides {
		s := &reply.Slides[i]
		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" {
			s.Title = fmt.Sprintf("Slide %d", i+1)
		}
		bullets := s.Bullets[:0]
		for _, b := range s.Bullets {
			if b = strings.TrimSpace(b); b != "" {
				bullets = append(bullets, b)
			}
		}
		s.Bullets = bullets
	}
	return reply.Slides, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
