package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTag(t *testing.T) {
	assert.Equal(t, ParallaxTag, Card{}.WithTag(ParallaxTag))
	assert.Equal(t, "12,"+ParallaxTag, Card{Tags: "12"}.WithTag(ParallaxTag))
	assert.Equal(t, "12, 1696804317", Card{Tags: "12, 1696804317"}.WithTag(ParallaxTag))
}

func TestHasTag(t *testing.T) {
	c := Card{Tags: "1, 22 ,333"}
	assert.True(t, c.HasTag("22"))
	assert.False(t, c.HasTag("2"))
	assert.Equal(t, []string{"1", "22", "333"}, c.TagList())
}

func TestFormat(t *testing.T) {
	c := Card{Name: "Lightning Bolt", SetCode: "STA", ArtType: "1", GrpID: 75211, ArtID: 412345}
	assert.Equal(t, "Lightning Bolt                 STA        1         75211    412345  ", c.Format())

	c.FlipSide = true
	assert.Equal(t, "Lightning Bolt-flip-side", c.String())
}

func TestSort(t *testing.T) {
	cards := []Card{
		{Name: "b", GrpID: 2, ArtID: 9},
		{Name: "a", GrpID: 3, ArtID: 8},
		{Name: "c", GrpID: 1, ArtID: 7},
	}
	require.NoError(t, Sort(cards, "GrpID"))
	assert.Equal(t, []int64{1, 2, 3}, []int64{cards[0].GrpID, cards[1].GrpID, cards[2].GrpID})

	require.NoError(t, Sort(cards, "name"))
	assert.Equal(t, "a", cards[0].Name)

	assert.Error(t, Sort(cards, "mana"))
}
