package styles

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/port"
)

var (
	ErrNoStyles     = errors.New("style catalog is empty")
	ErrInvalidStyle = errors.New("invalid style")

	styleIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)
	assColour      = regexp.MustCompile(`(?i)^&H[0-9a-f]{8}$`)
	hexColour      = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

var builtin = []domain.Style{
	{ID: "classic", Name: "Classic", Font: "Arial", FontSize: 48, PrimaryColour: "&H00FFFFFF", OutlineColour: "&H00000000", Outline: 2, Alignment: 2, MarginV: 60},
	{ID: "bold", Name: "Bold", Font: "Impact", FontSize: 64, PrimaryColour: "&H00FFFFFF", OutlineColour: "&H00000000", Outline: 4, Bold: true, Alignment: 2, MarginV: 80},
	{ID: "minimal", Name: "Minimal", Font: "Helvetica", FontSize: 40, PrimaryColour: "&H00F0F0F0", OutlineColour: "&H80000000", Outline: 1, Alignment: 2, MarginV: 40},
	{ID: "karaoke", Name: "Karaoke", Font: "Arial Black", FontSize: 56, PrimaryColour: "&H0000FFFF", OutlineColour: "&H00400000", Outline: 3, Bold: true, Alignment: 5, MarginV: 0},
}

type catalogFile struct {
	Styles []domain.Style `yaml:"styles"`
}

// Catalog is an immutable, ordered set of caption styles.
type Catalog struct {
	order []string
	byID  map[string]domain.Style
}

var _ port.StyleCatalog = (*Catalog)(nil)

func Builtin() *Catalog {
	c, err := newCatalog(builtin)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a YAML catalog. An empty path yields the built-in styles.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read style catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse style catalog: %w", err)
	}
	return newCatalog(f.Styles)
}

func newCatalog(list []domain.Style) (*Catalog, error) {
	if len(list) == 0 {
		return nil, ErrNoStyles
	}
	c := &Catalog{byID: make(map[string]domain.Style, len(list))}
	for i, s := range list {
		s, err := normalize(s)
		if err != nil {
			return nil, fmt.Errorf("style %d: %w", i+1, err)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidStyle, s.ID)
		}
		c.byID[s.ID] = s
		c.order = append(c.order, s.ID)
	}
	return c, nil
}

func normalize(s domain.Style) (domain.Style, error) {
	s.ID = strings.ToLower(strings.TrimSpace(s.ID))
	if !styleIDPattern.MatchString(s.ID) {
		return s, fmt.Errorf("%w: id %q", ErrInvalidStyle, s.ID)
	}
	if s.Name == "" {
		s.Name = s.ID
	}
	if s.FontSize < 0 || s.FontSize > 400 {
		return s, fmt.Errorf("%w: %s: font size %d out of range", ErrInvalidStyle, s.ID, s.FontSize)
	}
	if s.Alignment < 0 || s.Alignment > 9 {
		return s, fmt.Errorf("%w: %s: alignment %d out of range", ErrInvalidStyle, s.ID, s.Alignment)
	}
	var err error
	if s.PrimaryColour, err = toASSColour(s.PrimaryColour); err != nil {
		return s, fmt.Errorf("%w: %s: primary colour: %v", ErrInvalidStyle, s.ID, err)
	}
	if s.OutlineColour, err = toASSColour(s.OutlineColour); err != nil {
		return s, fmt.Errorf("%w: %s: outline colour: %v", ErrInvalidStyle, s.ID, err)
	}
	return s, nil
}

// toASSColour accepts &HAABBGGRR or #RRGGBB.
func toASSColour(c string) (string, error) {
	c = strings.TrimSpace(c)
	switch {
	case c == "":
		return "", nil
	case assColour.MatchString(c):
		return "&H" + strings.ToUpper(c[2:]), nil
	case hexColour.MatchString(c):
		rgb := strings.ToUpper(c[1:])
		return "&H00" + rgb[4:6] + rgb[2:4] + rgb[0:2], nil
	}
	return "", fmt.Errorf("unrecognised colour %q", c)
}

func (c *Catalog) Style(id string) (domain.Style, bool) {
	s, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	return s, ok
}

// Styles returns the styles in catalog order.
func (c *Catalog) Styles() []domain.Style {
	out := make([]domain.Style, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
