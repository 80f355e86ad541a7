package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogOrderAndLabels(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{"CycleGAN", "NST"}, c.Technologies())
	assert.Equal(t, []string{"cyclegan", "nst"}, c.TechnologyKeys())
	assert.Equal(t, []string{"Мозайка", "Ван Гог", "Попова", "Кандинский"}, c.Labels("nst"))
	assert.Len(t, c.StylesFor("cyclegan"), 2)
	assert.Nil(t, c.StylesFor("unknown"))
}

func TestMatchTechnologyIsCaseInsensitiveOnly(t *testing.T) {
	c := Default()

	key, ok := c.MatchTechnology("NST")
	require.True(t, ok)
	assert.Equal(t, "nst", key)

	key, ok = c.MatchTechnology("CycleGAN")
	require.True(t, ok)
	assert.Equal(t, "cyclegan", key)

	_, ok = c.MatchTechnology(" nst")
	assert.False(t, ok)
	_, ok = c.MatchTechnology("ns")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	c := Default()

	key, err := c.Resolve("nst", "Ван Гог")
	require.NoError(t, err)
	assert.Equal(t, "van_gogh", key)

	_, err = c.Resolve("nst", "Baroque")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = c.Resolve("nst", "Из зимы в лето")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Resolve("missing", "Мозайка")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupReturnsCopy(t *testing.T) {
	c := Default()

	tech, ok := c.Lookup("nst")
	require.True(t, ok)
	tech.Styles[0].Key = "mutated"

	key, err := c.Resolve("nst", "Мозайка")
	require.NoError(t, err)
	assert.Equal(t, "mosaic", key)
	assert.Equal(t, "mosaic", c.StylesFor("nst")[0].Key)
}

func TestNewRejectsInvalidInput(t *testing.T) {
	style := []Style{{Label: "A", Key: "a"}}
	cases := map[string][]Technology{
		"empty":          nil,
		"empty key":      {{Key: " ", Family: FamilyStylize, Styles: style}},
		"duplicate key":  {{Key: "x", Family: FamilyStylize, Styles: style}, {Key: "X", Family: FamilyStylize, Styles: style}},
		"bad family":     {{Key: "x", Family: "nope", Styles: style}},
		"no styles":      {{Key: "x", Family: FamilyStylize}},
		"dup label":      {{Key: "x", Family: FamilyStylize, Styles: []Style{{Label: "A", Key: "a"}, {Label: "A", Key: "b"}}}},
		"empty style id": {{Key: "x", Family: FamilyStylize, Styles: []Style{{Label: "A"}}}},
	}
	for name, techs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(techs)
			assert.Error(t, err)
		})
	}
}

func TestNewDefaultsLabelToKey(t *testing.T) {
	c, err := New([]Technology{{Key: "Solo", Family: FamilyTranslate, Styles: []Style{{Label: "A", Key: "a"}}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, c.Technologies())
	assert.Equal(t, 1, c.Len())
}
