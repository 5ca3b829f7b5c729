package card

import "math/rand"

// DeckSize is the full Euchre deck: 9 through A of each suit.
const DeckSize = 24

// Deck returns the canonical 24-card deck in suit-major order.
func Deck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, suit := range Suits() {
		for _, rank := range Ranks() {
			deck = append(deck, Card{Suit: suit, Rank: rank})
		}
	}
	return deck
}

// Shuffle returns a shuffled copy of the deck using the supplied source,
// leaving the input untouched. A fixed seed yields a reproducible deal.
func Shuffle(deck []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// IsFullDeck reports whether cards is a permutation of the 24-card deck.
func IsFullDeck(cards []Card) bool {
	if len(cards) != DeckSize {
		return false
	}
	seen := make(map[Card]bool, DeckSize)
	for _, c := range cards {
		if seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}
