// Package templates provides deck styling templates with user override support.
// Templates are resolved in order:
// 1. User override: templatesDir/{name}.toml, {name}.yaml or {name}.yml
// 2. Embedded: internal/templates/{name}.toml
// 3. The embedded "default" template
package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed *.toml
var fs embed.FS

// DefaultName is the template used when a request names none or an unknown one
const DefaultName = "default"

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Template describes how a deck is styled
type Template struct {
	Name        string  `toml:"name" yaml:"name"`
	Font        string  `toml:"font" yaml:"font"` // PDF core font: Helvetica, Arial, Times, Courier
	TitleSize   float64 `toml:"title_size" yaml:"title_size"`
	BodySize    float64 `toml:"body_size" yaml:"body_size"`
	Background  string  `toml:"background" yaml:"background"` // #RRGGBB
	TitleColor  string  `toml:"title_color" yaml:"title_color"`
	TextColor   string  `toml:"text_color" yaml:"text_color"`
	AccentColor string  `toml:"accent_color" yaml:"accent_color"`
}

// RGB is a color split into components for the PDF writer
type RGB struct {
	R, G, B int
}

// Loader resolves templates by name
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Get loads a template by name. Unknown names resolve to the default template,
// and the returned bool reports whether the requested name was found.
func (l *Loader) Get(name string) (*Template, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}

	if validName.MatchString(name) {
		t, err := l.lookup(name)
		if err != nil {
			return nil, false, err
		}
		if t != nil {
			return t, true, nil
		}
	}

	t, err := l.lookup(DefaultName)
	if err != nil {
		return nil, false, err
	}
	if t == nil {
		return nil, false, fmt.Errorf("template '%s' not found (checked user override and embedded)", DefaultName)
	}
	return t, name == DefaultName, nil
}

// lookup returns nil without error when no template has this name
func (l *Loader) lookup(name string) (*Template, error) {
	if l.dir != "" {
		for _, ext := range []string{".toml", ".yaml", ".yml"} {
			path := filepath.Join(l.dir, name+ext)
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			t, err := parseTemplate(data, ext)
			if err != nil {
				return nil, fmt.Errorf("template %s: %w", path, err)
			}
			return withName(t, name), nil
		}
	}

	data, err := fs.ReadFile(name + ".toml")
	if err != nil {
		return nil, nil
	}
	t, err := parseTemplate(data, ".toml")
	if err != nil {
		return nil, fmt.Errorf("embedded template %s: %w", name, err)
	}
	return withName(t, name), nil
}

// List returns the names of all available templates, user overrides included
func (l *Loader) List() []string {
	seen := map[string]bool{}

	if entries, err := fs.ReadDir("."); err == nil {
		for _, entry := range entries {
			if name, ok := strings.CutSuffix(entry.Name(), ".toml"); ok {
				seen[name] = true
			}
		}
	}

	if l.dir != "" {
		if entries, err := os.ReadDir(l.dir); err == nil {
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				ext := filepath.Ext(entry.Name())
				switch ext {
				case ".toml", ".yaml", ".yml":
					seen[strings.TrimSuffix(entry.Name(), ext)] = true
				}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseTemplate(data []byte, ext string) (*Template, error) {
	t := defaults()
	var err error
	if ext == ".toml" {
		err = toml.Unmarshal(data, t)
	} else {
		err = yaml.Unmarshal(data, t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return t, t.validate()
}

func withName(t *Template, name string) *Template {
	if t.Name == "" {
		t.Name = name
	}
	return t
}

func defaults() *Template {
	return &Template{
		Font:        "Helvetica",
		TitleSize:   28,
		BodySize:    16,
		Background:  "#FFFFFF",
		TitleColor:  "#000000",
		TextColor:   "#000000",
		AccentColor: "#000000",
	}
}

func (t *Template) validate() error {
	for field, value := range map[string]string{
		"background":   t.Background,
		"title_color":  t.TitleColor,
		"text_color":   t.TextColor,
		"accent_color": t.AccentColor,
	} {
		if _, err := ParseColor(value); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	if t.TitleSize <= 0 || t.BodySize <= 0 {
		return fmt.Errorf("font sizes must be positive")
	}
	return nil
}

// ParseColor parses #RRGGBB (the leading # is optional)
func ParseColor(hex string) (RGB, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q: expected #RRGGBB", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return RGB{R: int(v >> 16 & 0xFF), G: int(v >> 8 & 0xFF), B: int(v & 0xFF)}, nil
}

// Colors returns the parsed template colors: background, title, text, accent
func (t *Template) Colors() (bg, title, text, accent RGB) {
	bg, _ = ParseColor(t.Background)
	title, _ = ParseColor(t.TitleColor)
	text, _ = ParseColor(t.TextColor)
	accent, _ = ParseColor(t.AccentColor)
	return
}
