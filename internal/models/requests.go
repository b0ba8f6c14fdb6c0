package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultImageSize     = "1024x1024"
	DefaultImageStyle    = "photorealistic"
	DefaultOutlineStyle  = "default"
	DefaultDeckTemplate  = "default"
	DefaultOutlineLength = 5
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names rather than Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// OutlineRequest asks for a slide outline
type OutlineRequest struct {
	Title    string `json:"title" validate:"required"`
	Audience string `json:"audience,omitempty"`
	Length   int    `json:"length,omitempty"`
	Style    string `json:"style,omitempty"`
}

// ApplyDefaults fills omitted fields. defaultLength <= 0 uses DefaultOutlineLength.
func (r *OutlineRequest) ApplyDefaults(defaultLength int) {
	if defaultLength <= 0 {
		defaultLength = DefaultOutlineLength
	}
	if r.Length == 0 {
		r.Length = defaultLength
	}
	if r.Style == "" {
		r.Style = DefaultOutlineStyle
	}
}

func (r *OutlineRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	return validateStruct(r)
}

// ImageRequest asks for a generated image. Size is checked by the image
// producer, so a malformed size fails the job rather than the submission.
type ImageRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Size   string `json:"size,omitempty"`
	Style  string `json:"style,omitempty"`
}

func (r *ImageRequest) ApplyDefaults() {
	if r.Size == "" {
		r.Size = DefaultImageSize
	}
	if r.Style == "" {
		r.Style = DefaultImageStyle
	}
}

func (r *ImageRequest) Validate() error {
	r.Prompt = strings.TrimSpace(r.Prompt)
	return validateStruct(r)
}

// ImageRef places the artifact of an image job on a slide (1-based)
type ImageRef struct {
	Slide    int    `json:"slide" validate:"gte=1"`
	ImageJob string `json:"image_job" validate:"required"`
}

// DeckRequest asks for a slide deck assembled from an outline job and image jobs
type DeckRequest struct {
	OutlineID string                 `json:"outline_id" validate:"required"`
	Images    []ImageRef             `json:"images,omitempty" validate:"dive"`
	Template  string                 `json:"template,omitempty"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

func (r *DeckRequest) ApplyDefaults() {
	if r.Template == "" {
		r.Template = DefaultDeckTemplate
	}
}

func (r *DeckRequest) Validate() error {
	r.OutlineID = strings.TrimSpace(r.OutlineID)
	return validateStruct(r)
}

// validateStruct runs the struct validator and flattens failures into one readable error
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, describeFieldError(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	// Drop the struct name prefix: "OutlineRequest.title" -> "title"
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
