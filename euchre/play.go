package euchre

import "fun-euchre/card"

// EffectiveSuit is the suit a card follows as: the left bower counts as
// trump, never as its printed suit.
func EffectiveSuit(c card.Card, trump card.Suit) card.Suit {
	if c.Rank == card.Jack && c.Suit != trump && c.Suit.SameColor(trump) {
		return trump
	}
	return c.Suit
}

// IsRightBower reports whether c is the jack of trump.
func IsRightBower(c card.Card, trump card.Suit) bool {
	return c.Rank == card.Jack && c.Suit == trump
}

// IsLeftBower reports whether c is the jack of trump's color mate.
func IsLeftBower(c card.Card, trump card.Suit) bool {
	return c.Rank == card.Jack && c.Suit != trump && c.Suit.SameColor(trump)
}

// absolutePower orders a card within its effective suit, trump above all:
// right bower, left bower, then A K Q 10 9 of trump; off-suits A K Q J 10 9
// within themselves. Used for discard selection and as the trick-power base.
func absolutePower(c card.Card, trump card.Suit) int {
	switch {
	case IsRightBower(c, trump):
		return 120
	case IsLeftBower(c, trump):
		return 119
	case c.Suit == trump:
		return 100 + int(c.Rank)
	default:
		return int(c.Rank)
	}
}

// trickPower ranks a played card inside a trick: trump beats lead suit
// beats everything else.
func trickPower(c card.Card, trump, lead card.Suit) int {
	if EffectiveSuit(c, trump) == trump {
		return absolutePower(c, trump)
	}
	if c.Suit == lead {
		return 50 + int(c.Rank)
	}
	return 0
}

// trickWinner returns the seat that took the trick. Plays are in table
// order; a later card must strictly outrank to take the lead.
func trickWinner(plays []Play, trump card.Suit) Seat {
	lead := EffectiveSuit(plays[0].Card, trump)
	winner := plays[0].Seat
	best := trickPower(plays[0].Card, trump, lead)
	for _, p := range plays[1:] {
		if power := trickPower(p.Card, trump, lead); power > best {
			best = power
			winner = p.Seat
		}
	}
	return winner
}

// holdsSuit reports whether the hand contains any card following as suit.
func holdsSuit(hand []card.Card, suit, trump card.Suit) bool {
	for _, c := range hand {
		if EffectiveSuit(c, trump) == suit {
			return true
		}
	}
	return false
}

// LegalPlays returns the subset of hand playable against the current trick
// under lead-suit rules.
func LegalPlays(hand []card.Card, trick *Trick, trump card.Suit) []card.Card {
	if trick == nil || len(trick.Plays) == 0 {
		return append([]card.Card(nil), hand...)
	}
	lead := EffectiveSuit(trick.Plays[0].Card, trump)
	if !holdsSuit(hand, lead, trump) {
		return append([]card.Card(nil), hand...)
	}
	legal := make([]card.Card, 0, len(hand))
	for _, c := range hand {
		if EffectiveSuit(c, trump) == lead {
			legal = append(legal, c)
		}
	}
	return legal
}

func (e *Engine) applyPlayCard(s *State, a Action) *Reject {
	if s.Phase != PhasePlay {
		return rejectInvalidState("cannot play a card during %s", s.Phase)
	}
	if s.PartnerSitsOut != nil && a.Actor == *s.PartnerSitsOut {
		return rejectInvalidAction("%s is sitting out this hand", a.Actor)
	}
	if a.Actor != s.Trick.Turn {
		return rejectNotYourTurn(a.Actor, s.Trick.Turn)
	}

	hand := s.Hands[a.Actor]
	idx := indexOfCard(hand, a.Card)
	if idx < 0 {
		return rejectInvalidAction("%s does not hold %s", a.Actor, a.Card)
	}

	trump := *s.Trump
	if len(s.Trick.Plays) > 0 {
		lead := EffectiveSuit(s.Trick.Plays[0].Card, trump)
		if EffectiveSuit(a.Card, trump) != lead && holdsSuit(hand, lead, trump) {
			return rejectInvalidAction("must follow %s", lead)
		}
	}

	s.Hands[a.Actor] = append(hand[:idx:idx], hand[idx+1:]...)
	s.Trick.Plays = append(s.Trick.Plays, Play{Seat: a.Actor, Card: a.Card})

	if len(s.Trick.Plays) < len(s.ActiveSeats()) {
		s.Trick.Turn = s.NextActiveSeat(a.Actor)
		s.Turn = s.Trick.Turn
		return nil
	}

	winner := trickWinner(s.Trick.Plays, trump)
	s.TricksWon.Add(winner.Team(), 1)
	s.Turn = winner

	if s.Trick.Number >= TricksPerHand {
		s.Trick = nil
		s.Phase = PhaseScore
		return nil
	}
	s.Trick = &Trick{Number: s.Trick.Number + 1, Leader: winner, Turn: winner}
	return nil
}

func indexOfCard(hand []card.Card, target card.Card) int {
	for i, c := range hand {
		if c == target {
			return i
		}
	}
	return -1
}
