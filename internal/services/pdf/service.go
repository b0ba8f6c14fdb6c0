package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/templates"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Widescreen slide size in millimetres (13.333in x 7.5in)
const (
	slideWidth  = 338.67
	slideHeight = 190.5
	margin      = 18.0
)

// Slide is one rendered page
type Slide struct {
	Title   string
	Bullets []string // inline markdown
	// ImagePath is a local PNG or JPEG placed on the right half of the slide
	ImagePath string
}

// Deck is the input to RenderDeck. A non-empty Title adds a cover page.
type Deck struct {
	Title    string
	Subtitle string
	Slides   []Slide
}

// PageCount is the number of pages RenderDeck produces for d
func (d *Deck) PageCount() int {
	n := len(d.Slides)
	if d.Title != "" {
		n++
	}
	return n
}

// Service renders slide decks to PDF
type Service struct {
	logger arbor.ILogger
	md     goldmark.Markdown
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
		md:     goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify)),
	}
}

// RenderDeck draws one landscape page per slide using the template's fonts and colors
func (s *Service) RenderDeck(deck *Deck, tmpl *templates.Template) ([]byte, error) {
	if deck == nil || deck.PageCount() == 0 {
		return nil, fmt.Errorf("deck has no pages")
	}

	s.logger.Debug().
		Int("slides", len(deck.Slides)).
		Str("template", tmpl.Name).
		Msg("Rendering deck to PDF")

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "L",
		UnitStr:        "mm",
		// Landscape swaps width and height
		Size: fpdf.SizeType{Wd: slideHeight, Ht: slideWidth},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetTitle(deck.Title, true)
	pdf.SetCreator("slidegen", true)

	r := &slideRenderer{
		pdf:  pdf,
		tmpl: tmpl,
		md:   s.md,
		tr:   pdf.UnicodeTranslatorFromDescriptor(""),
	}
	r.bg, r.titleColor, r.textColor, r.accent = tmpl.Colors()

	if deck.Title != "" {
		r.cover(deck.Title, deck.Subtitle)
	}
	for i, slide := range deck.Slides {
		if err := r.slide(i+1, slide); err != nil {
			return nil, err
		}
	}

	if err := pdf.Error(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF")
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Msg("Deck PDF generated")
	return buf.Bytes(), nil
}

type slideRenderer struct {
	pdf  *fpdf.Fpdf
	tmpl *templates.Template
	md   goldmark.Markdown
	tr   func(string) string

	bg, titleColor, textColor, accent templates.RGB

	source []byte
	bold   bool
	italic bool
}

func (r *slideRenderer) background() {
	w, h := r.pdf.GetPageSize()
	r.pdf.SetFillColor(r.bg.R, r.bg.G, r.bg.B)
	r.pdf.Rect(0, 0, w, h, "F")

	// Accent bar along the left edge
	r.pdf.SetFillColor(r.accent.R, r.accent.G, r.accent.B)
	r.pdf.Rect(0, 0, 4, h, "F")
}

func (r *slideRenderer) cover(title, subtitle string) {
	r.pdf.AddPage()
	r.background()

	w, h := r.pdf.GetPageSize()
	r.pdf.SetTextColor(r.titleColor.R, r.titleColor.G, r.titleColor.B)
	r.pdf.SetFont(r.tmpl.Font, "B", r.tmpl.TitleSize*1.4)
	r.pdf.SetXY(margin, h/2-20)
	r.pdf.MultiCell(w-2*margin, r.tmpl.TitleSize*0.6, r.tr(title), "", "C", false)

	if subtitle != "" {
		r.pdf.SetTextColor(r.textColor.R, r.textColor.G, r.textColor.B)
		r.pdf.SetFont(r.tmpl.Font, "I", r.tmpl.BodySize)
		r.pdf.SetX(margin)
		r.pdf.MultiCell(w-2*margin, r.tmpl.BodySize*0.6, r.tr(subtitle), "", "C", false)
	}
}

func (r *slideRenderer) slide(number int, slide Slide) error {
	r.pdf.AddPage()
	r.background()

	w, h := r.pdf.GetPageSize()
	textRight := margin
	if slide.ImagePath != "" {
		// Text keeps the left half when an image is placed
		textRight = w / 2
		imgW := w/2 - 1.5*margin
		r.pdf.ImageOptions(slide.ImagePath, w/2+margin/2, margin+24, imgW, 0, false,
			fpdf.ImageOptions{ReadDpi: true, ImageType: imageType(slide.ImagePath)}, 0, "")
	}
	r.pdf.SetRightMargin(textRight)
	defer r.pdf.SetRightMargin(margin)

	r.pdf.SetTextColor(r.titleColor.R, r.titleColor.G, r.titleColor.B)
	r.pdf.SetFont(r.tmpl.Font, "B", r.tmpl.TitleSize)
	r.pdf.SetXY(margin, margin)
	r.pdf.MultiCell(w-margin-textRight, r.tmpl.TitleSize*0.5, r.tr(slide.Title), "", "L", false)
	r.pdf.Ln(4)

	lineHeight := r.tmpl.BodySize * 0.5
	for _, bullet := range slide.Bullets {
		r.pdf.SetX(margin)
		r.pdf.SetTextColor(r.accent.R, r.accent.G, r.accent.B)
		r.pdf.SetFont(r.tmpl.Font, "B", r.tmpl.BodySize)
		r.pdf.Write(lineHeight, r.tr("• "))

		r.pdf.SetTextColor(r.textColor.R, r.textColor.G, r.textColor.B)
		if err := r.inline(bullet, lineHeight); err != nil {
			return fmt.Errorf("slide %d: %w", number, err)
		}
		r.pdf.Ln(lineHeight * 1.6)
	}

	// Slide number
	r.pdf.SetFont(r.tmpl.Font, "", 9)
	r.pdf.SetTextColor(r.textColor.R, r.textColor.G, r.textColor.B)
	r.pdf.SetXY(w-margin-20, h-margin/2-4)
	r.pdf.CellFormat(20, 4, fmt.Sprintf("%d", number), "", 0, "R", false, 0, "")

	return nil
}

// inline writes a bullet parsed as markdown: emphasis, code spans and links
func (r *slideRenderer) inline(src string, lineHeight float64) error {
	r.source = []byte(src)
	r.bold, r.italic = false, false
	r.updateFont()

	doc := r.md.Parser().Parse(text.NewReader(r.source))
	return ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				r.pdf.Write(lineHeight, r.tr(string(node.Segment.Value(r.source))))
				if node.SoftLineBreak() || node.HardLineBreak() {
					r.pdf.Write(lineHeight, " ")
				}
			}
		case *ast.Emphasis:
			if node.Level == 2 {
				r.bold = entering
			} else {
				r.italic = entering
			}
			r.updateFont()
		case *ast.CodeSpan:
			if entering {
				r.pdf.SetFont("Courier", "", r.tmpl.BodySize*0.9)
				for c := node.FirstChild(); c != nil; c = c.NextSibling() {
					if t, ok := c.(*ast.Text); ok {
						r.pdf.Write(lineHeight, r.tr(string(t.Segment.Value(r.source))))
					}
				}
				r.updateFont()
				return ast.WalkSkipChildren, nil
			}
		case *ast.Link, *ast.AutoLink:
			if entering {
				r.pdf.SetTextColor(r.accent.R, r.accent.G, r.accent.B)
			} else {
				r.pdf.SetTextColor(r.textColor.R, r.textColor.G, r.textColor.B)
			}
			if auto, ok := node.(*ast.AutoLink); ok && entering {
				r.pdf.Write(lineHeight, r.tr(string(auto.URL(r.source))))
			}
		}
		return ast.WalkContinue, nil
	})
}

func (r *slideRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(r.tmpl.Font, style, r.tmpl.BodySize)
}

func imageType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "JPG"
	default:
		return "PNG"
	}
}

// UsableImage reports whether path points at an existing PNG or JPEG file
func UsableImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
	default:
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
