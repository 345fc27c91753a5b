package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrandCarriesFields(t *testing.T) {
	e := Brand("Title", "body", ColorAccent,
		Field{Name: "A", Value: "1", Inline: true},
		Field{Name: "B", Value: "2"},
	)

	assert.Equal(t, "Title", e.Title)
	assert.Equal(t, "body", e.Description)
	assert.Equal(t, ColorAccent, e.Color)
	require.Len(t, e.Fields, 2)
	assert.True(t, e.Fields[0].Inline)
	assert.False(t, e.Fields[1].Inline)
}

func TestBuildersAreDeterministic(t *testing.T) {
	a := Error("An Error Occurred", "Something went wrong.")
	b := Error("An Error Occurred", "Something went wrong.")
	assert.Equal(t, a, b)
	assert.NotSame(t, a, b)
}

func TestPaletteMapping(t *testing.T) {
	assert.Equal(t, ColorPrimary, Success("t", "d").Color)
	assert.Equal(t, ColorAccent, Info("t", "d").Color)
	assert.Equal(t, ColorWarning, Warning("t", "d").Color)
	assert.Equal(t, ColorDanger, Error("t", "d").Color)
}

func TestSectionedLayout(t *testing.T) {
	e := Sectioned("U-Drive Orders", "Pick a service", "Use the menu below.")
	assert.Equal(t, "**Pick a service**\nUse the menu below.", e.Description)

	assert.Equal(t, "Just the prompt.", Sectioned("T", "", "Just the prompt.").Description)
	assert.Equal(t, "**Only subtitle**", Sectioned("T", "Only subtitle", "").Description)
	assert.Empty(t, Sectioned("T", "", "").Description)
}
