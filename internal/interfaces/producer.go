package interfaces

import (
	"context"

	"github.com/ternarybob/slidegen/internal/models"
)

// ProducerOutput is what a producer hands back to the job runner.
// Set Slides for inline content, FilePath for a file that must be stored,
// or URL for a reference that is already retrievable.
type ProducerOutput struct {
	Slides []models.Slide

	// FilePath is a scratch file. The runner owns it once Run returns and
	// removes it after storing.
	FilePath string
	FileName string

	URL string
}

// Producer generates the content for one job type
type Producer interface {
	Run(ctx context.Context, jobID string, payload interface{}) (*ProducerOutput, error)
}
