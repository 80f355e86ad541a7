// Package catalog holds the immutable set of technologies and styles a user
// can pick from. A Catalog is built once at startup and is safe for
// concurrent use without locking.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a technology or style label is not known.
var ErrNotFound = errors.New("catalog: not found")

// Family identifies how the processing layer prepares tensors for a technology.
type Family string

const (
	// FamilyStylize is per-pixel style transfer (fast NST models).
	FamilyStylize Family = "stylize"
	// FamilyTranslate is image-to-image domain translation (CycleGAN models).
	FamilyTranslate Family = "translate"
)

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	return f == FamilyStylize || f == FamilyTranslate
}

// Style maps a human-facing label to the backend style key.
type Style struct {
	Label string `yaml:"label"`
	Key   string `yaml:"key"`
}

// Technology groups styles under a top-level user choice.
type Technology struct {
	Key         string  `yaml:"key"`
	Label       string  `yaml:"label"`
	Description string  `yaml:"description"`
	Family      Family  `yaml:"family"`
	ModelSuffix string  `yaml:"model_suffix"`
	Styles      []Style `yaml:"styles"`
}

// Catalog is the read-only lookup structure built from a list of technologies.
type Catalog struct {
	techs  []Technology
	byKey  map[string]int
	styles map[string]map[string]string
}

// New validates the provided technologies and builds a Catalog.
// Technology keys are stored lower-cased; order is preserved for prompts.
func New(techs []Technology) (*Catalog, error) {
	if len(techs) == 0 {
		return nil, fmt.Errorf("catalog: no technologies configured")
	}
	c := &Catalog{
		techs:  make([]Technology, 0, len(techs)),
		byKey:  make(map[string]int, len(techs)),
		styles: make(map[string]map[string]string, len(techs)),
	}
	for i, t := range techs {
		key := strings.ToLower(strings.TrimSpace(t.Key))
		if key == "" {
			return nil, fmt.Errorf("catalog: technology #%d has empty key", i)
		}
		if _, dup := c.byKey[key]; dup {
			return nil, fmt.Errorf("catalog: duplicate technology %q", key)
		}
		if !t.Family.Valid() {
			return nil, fmt.Errorf("catalog: technology %q has unknown family %q", key, t.Family)
		}
		if len(t.Styles) == 0 {
			return nil, fmt.Errorf("catalog: technology %q has no styles", key)
		}
		labels := make(map[string]string, len(t.Styles))
		styles := make([]Style, 0, len(t.Styles))
		for _, s := range t.Styles {
			if s.Label == "" || s.Key == "" {
				return nil, fmt.Errorf("catalog: technology %q has a style with empty label or key", key)
			}
			if _, dup := labels[s.Label]; dup {
				return nil, fmt.Errorf("catalog: technology %q has duplicate style label %q", key, s.Label)
			}
			labels[s.Label] = s.Key
			styles = append(styles, s)
		}

		t.Key = key
		if strings.TrimSpace(t.Label) == "" {
			t.Label = key
		}
		t.Styles = styles
		c.byKey[key] = len(c.techs)
		c.techs = append(c.techs, t)
		c.styles[key] = labels
	}
	return c, nil
}

// Technologies returns display labels in configured order.
func (c *Catalog) Technologies() []string {
	out := make([]string, len(c.techs))
	for i, t := range c.techs {
		out[i] = t.Label
	}
	return out
}

// TechnologyKeys returns technology keys in configured order.
func (c *Catalog) TechnologyKeys() []string {
	out := make([]string, len(c.techs))
	for i, t := range c.techs {
		out[i] = t.Key
	}
	return out
}

// Lookup returns a copy of the technology registered under key.
func (c *Catalog) Lookup(key string) (Technology, bool) {
	idx, ok := c.byKey[key]
	if !ok {
		return Technology{}, false
	}
	t := c.techs[idx]
	t.Styles = append([]Style(nil), t.Styles...)
	return t, true
}

// MatchTechnology lower-cases text and matches it against technology keys.
// No trimming or fuzzy matching is applied.
func (c *Catalog) MatchTechnology(text string) (string, bool) {
	key := strings.ToLower(text)
	if _, ok := c.byKey[key]; ok {
		return key, true
	}
	return "", false
}

// StylesFor returns the ordered styles of a technology, or nil if unknown.
func (c *Catalog) StylesFor(tech string) []Style {
	idx, ok := c.byKey[tech]
	if !ok {
		return nil
	}
	return append([]Style(nil), c.techs[idx].Styles...)
}

// Labels returns the style labels of a technology in configured order.
func (c *Catalog) Labels(tech string) []string {
	styles := c.StylesFor(tech)
	out := make([]string, len(styles))
	for i, s := range styles {
		out[i] = s.Label
	}
	return out
}

// Resolve maps an exact style label to its key.
func (c *Catalog) Resolve(tech, label string) (string, error) {
	labels, ok := c.styles[tech]
	if !ok {
		return "", fmt.Errorf("technology %q: %w", tech, ErrNotFound)
	}
	key, ok := labels[label]
	if !ok {
		return "", fmt.Errorf("style %q of %q: %w", label, tech, ErrNotFound)
	}
	return key, nil
}

// Len reports the number of technologies.
func (c *Catalog) Len() int { return len(c.techs) }
