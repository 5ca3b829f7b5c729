package card

import (
	"fmt"
	"strings"
)

// Rank is the card face value. Euchre plays with the short deck 9 through
// ace; ace is high within a plain suit.
type Rank byte

const (
	Nine  Rank = 9
	Ten   Rank = 10
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

var rankSymbols = map[Rank]string{
	Nine:  "9",
	Ten:   "10",
	Jack:  "J",
	Queen: "Q",
	King:  "K",
	Ace:   "A",
}

func (r Rank) String() string {
	if sym, ok := rankSymbols[r]; ok {
		return sym
	}
	return "?"
}

// Ranks returns the six Euchre ranks in ascending order.
func Ranks() [6]Rank {
	return [6]Rank{Nine, Ten, Jack, Queen, King, Ace}
}

// ParseRank converts a wire symbol ("A", "10") to a Rank.
func ParseRank(raw string) (Rank, error) {
	for rank, sym := range rankSymbols {
		if strings.EqualFold(raw, sym) {
			return rank, nil
		}
	}
	return 0, fmt.Errorf("invalid rank: %q", raw)
}

// Card is a single Euchre card. The wire form is "<suit>:<rank>",
// e.g. "hearts:A" or "clubs:10".
type Card struct {
	Suit Suit
	Rank Rank
}

func (c Card) String() string {
	return fmt.Sprintf("%s:%s", c.Suit, c.Rank)
}

// Parse converts the wire form back into a Card.
func Parse(raw string) (Card, error) {
	idx := strings.IndexByte(raw, ':')
	if idx <= 0 || idx == len(raw)-1 {
		return Card{}, fmt.Errorf("invalid card: %q", raw)
	}
	suit, err := ParseSuit(raw[:idx])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card: %q", raw)
	}
	rank, err := ParseRank(raw[idx+1:])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card: %q", raw)
	}
	return Card{Suit: suit, Rank: rank}, nil
}

func (c Card) MarshalText() ([]byte, error) {
	if _, ok := suitNames[c.Suit]; !ok {
		return nil, fmt.Errorf("invalid card suit: %d", c.Suit)
	}
	if _, ok := rankSymbols[c.Rank]; !ok {
		return nil, fmt.Errorf("invalid card rank: %d", c.Rank)
	}
	return []byte(c.String()), nil
}

func (c *Card) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
