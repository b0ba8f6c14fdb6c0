package producers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/models"
	"github.com/ternarybob/slidegen/internal/services/llm"
)

type fakeGenerator struct {
	text string
	err  error
	last *llm.Request
}

func (g *fakeGenerator) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	g.last = req
	if g.err != nil {
		return nil, g.err
	}
	return &llm.Response{Text: g.text, Provider: llm.ProviderClaude, Model: "test"}, nil
}

func TestLLMOutlineProducer_Run(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"slides\":[{\"title\":\"Intro\",\"bullets\":[\"**Why** now\",\" \"]},{\"title\":\"\",\"bullets\":[\"b\"]},{\"title\":\"Extra\"}]}\n```"}
	p := NewLLMOutlineProducer(gen, arbor.NewLogger())

	out, err := p.Run(context.Background(), "job-1", &models.OutlineRequest{Title: "Q3", Audience: "board", Length: 2})
	require.NoError(t, err)
	require.Len(t, out.Slides, 2)
	assert.Equal(t, "Intro", out.Slides[0].Title)
	assert.Equal(t, []string{"**Why** now"}, out.Slides[0].Bullets)
	assert.Equal(t, "Slide 2", out.Slides[1].Title)

	require.NotNil(t, gen.last)
	assert.True(t, gen.last.JSON)
	assert.Contains(t, gen.last.Prompt, `"Q3"`)
	assert.Contains(t, gen.last.Prompt, "board")
	assert.Contains(t, gen.last.Prompt, "2-slide")
}

func TestLLMOutlineProducer_Errors(t *testing.T) {
	p := NewLLMOutlineProducer(&fakeGenerator{err: errors.New("upstream down")}, arbor.NewLogger())
	_, err := p.Run(context.Background(), "job-1", &models.OutlineRequest{Title: "x", Length: 1})
	assert.EqualError(t, err, "upstream down")

	p = NewLLMOutlineProducer(&fakeGenerator{text: "not json"}, arbor.NewLogger())
	_, err = p.Run(context.Background(), "job-1", &models.OutlineRequest{Title: "x", Length: 1})
	assert.ErrorIs(t, err, ErrMalformedOutline)

	_, err = p.Run(context.Background(), "job-1", &models.ImageRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestParseOutline(t *testing.T) {
	slides, err := ParseOutline(`[{"title":"A","bullets":["x"]}]`, 5)
	require.NoError(t, err)
	require.Len(t, slides, 1)
	assert.Equal(t, "A", slides[0].Title)

	_, err = ParseOutline(`{"slides":[]}`, 5)
	assert.ErrorIs(t, err, ErrMalformedOutline)

	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(` {"a":1} `))
}
