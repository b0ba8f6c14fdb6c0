package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Verify validates the PDF at path and checks it has the expected number of pages
func (s *Service) Verify(path string, expectedPages int) error {
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("generated PDF is invalid: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return fmt.Errorf("failed to read PDF context: %w", err)
	}

	if pdfCtx.PageCount != expectedPages {
		return fmt.Errorf("generated PDF has %d pages, expected %d", pdfCtx.PageCount, expectedPages)
	}

	s.logger.Debug().
		Str("path", path).
		Int("pages", pdfCtx.PageCount).
		Msg("Deck PDF verified")

	return nil
}
