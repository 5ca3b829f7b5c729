package card

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeckHas24UniqueCards(t *testing.T) {
	deck := Deck()
	require.Len(t, deck, DeckSize)

	seen := make(map[Card]bool)
	for _, c := range deck {
		assert.False(t, seen[c], "duplicate card %s", c)
		seen[c] = true
	}
	require.True(t, IsFullDeck(deck))
}

func TestShuffleIsReproducibleAndNonDestructive(t *testing.T) {
	deck := Deck()
	a := Shuffle(deck, rand.New(rand.NewSource(42)))
	b := Shuffle(deck, rand.New(rand.NewSource(42)))
	require.Equal(t, a, b, "same seed must yield same order")
	require.Equal(t, Deck(), deck, "input deck must not be mutated")
	require.True(t, IsFullDeck(a))
}

func TestParseRoundTrip(t *testing.T) {
	for _, c := range Deck() {
		parsed, err := Parse(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "hearts", "hearts:", ":A", "hearts:1", "swords:A", "hearts:A:extra"} {
		_, err := Parse(raw)
		assert.Error(t, err, "expected parse failure for %q", raw)
	}
}

func TestCardJSONEncoding(t *testing.T) {
	data, err := json.Marshal(Card{Suit: Hearts, Rank: Ace})
	require.NoError(t, err)
	assert.Equal(t, `"hearts:A"`, string(data))

	var c Card
	require.NoError(t, json.Unmarshal([]byte(`"clubs:10"`), &c))
	assert.Equal(t, Card{Suit: Clubs, Rank: Ten}, c)
}

func TestSameColorPairsSuits(t *testing.T) {
	assert.True(t, Hearts.SameColor(Diamonds))
	assert.True(t, Spades.SameColor(Clubs))
	assert.False(t, Hearts.SameColor(Spades))
}

func TestIsFullDeckRejectsDuplicates(t *testing.T) {
	deck := Deck()
	deck[1] = deck[0]
	assert.False(t, IsFullDeck(deck))
	assert.False(t, IsFullDeck(deck[:23]))
}
