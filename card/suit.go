package card

import "fmt"

// Suit is one of the four French suits. Euchre pairs suits by color: the
// jack of the suit sharing trump's color becomes the left bower.
type Suit byte

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// Color groups suits into the two bower-sharing pairs.
type Color byte

const (
	Black Color = iota
	Red
)

var suitNames = map[Suit]string{
	Spades:   "spades",
	Hearts:   "hearts",
	Diamonds: "diamonds",
	Clubs:    "clubs",
}

func (s Suit) String() string {
	if name, ok := suitNames[s]; ok {
		return name
	}
	return "?"
}

func (s Suit) Color() Color {
	if s == Hearts || s == Diamonds {
		return Red
	}
	return Black
}

// SameColor reports whether two suits share a color, which is the left
// bower relationship when one of them is trump.
func (s Suit) SameColor(o Suit) bool {
	return s.Color() == o.Color()
}

// Suits returns the four suits in canonical deck order.
func Suits() [4]Suit {
	return [4]Suit{Spades, Hearts, Diamonds, Clubs}
}

// ParseSuit converts a wire name ("hearts") to a Suit.
func ParseSuit(raw string) (Suit, error) {
	for suit, name := range suitNames {
		if raw == name {
			return suit, nil
		}
	}
	return 0, fmt.Errorf("invalid suit: %q", raw)
}

func (s Suit) MarshalText() ([]byte, error) {
	name, ok := suitNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid suit: %d", s)
	}
	return []byte(name), nil
}

func (s *Suit) UnmarshalText(text []byte) error {
	suit, err := ParseSuit(string(text))
	if err != nil {
		return err
	}
	*s = suit
	return nil
}
