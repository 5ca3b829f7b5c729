package euchre

import "fun-euchre/card"

func (e *Engine) applyPass(s *State, a Action) *Reject {
	if s.Phase != PhaseRound1 && s.Phase != PhaseRound2 {
		return rejectInvalidState("cannot pass during %s", s.Phase)
	}
	if a.Actor != s.Bidding.Turn {
		return rejectNotYourTurn(a.Actor, s.Bidding.Turn)
	}

	s.Bidding.Passes++
	if s.Bidding.Passes < 4 {
		s.Bidding.Turn = s.Bidding.Turn.Next()
		s.Turn = s.Bidding.Turn
		return nil
	}

	if s.Bidding.Round == 1 {
		turnedDown := s.Upcard.Suit
		s.Bidding = &Bidding{
			Round:          2,
			Turn:           s.Dealer.Next(),
			TurnedDownSuit: &turnedDown,
		}
		s.Turn = s.Bidding.Turn
		s.Phase = PhaseRound2
		return nil
	}

	// Four passes in round 2 throw the hand in: the deal moves left and a
	// fresh hand is dealt immediately so the game never stalls.
	e.throwInHand(s)
	return nil
}

// throwInHand gathers the dealt cards back into their original deck
// order and redeals them under the advanced dealer. Bidding never touches
// a hand, so the gathered deck equals the deck the hand was dealt from
// and a supplied-deck game replays identically through a thrown-in hand.
func (e *Engine) throwInHand(s *State) {
	deck := s.gatherDeck()
	s.Dealer = s.Dealer.Next()
	s.Phase = PhaseDeal
	s.Bidding = nil
	e.dealFrom(s, deck)
}

// gatherDeck reassembles the dealt deck: five cards per seat starting
// left of the dealer, then the kitty. Inverse of dealFrom.
func (s *State) gatherDeck() []card.Card {
	deck := make([]card.Card, 0, 4*HandSize+len(s.Kitty))
	seat := s.Dealer.Next()
	for i := 0; i < 4; i++ {
		deck = append(deck, s.Hands[seat]...)
		seat = seat.Next()
	}
	return append(deck, s.Kitty...)
}

func (e *Engine) applyOrderUp(s *State, a Action) *Reject {
	if s.Phase != PhaseRound1 {
		return rejectInvalidState("cannot order up during %s", s.Phase)
	}
	if a.Actor != s.Bidding.Turn {
		return rejectNotYourTurn(a.Actor, s.Bidding.Turn)
	}

	trump := s.Upcard.Suit
	s.dealerPicksUp()
	s.beginPlay(trump, a.Actor, a.Alone)
	return nil
}

// dealerPicksUp exchanges the upcard into the dealer's hand for the
// dealer's weakest card, which joins the kitty so the dealt-deck
// partition (hands ∪ kitty) stays intact.
func (s *State) dealerPicksUp() {
	trump := s.Upcard.Suit
	hand := s.Hands[s.Dealer]
	hand = append(hand, *s.Upcard)

	discardIdx := weakestCardIndex(hand, trump)
	discard := hand[discardIdx]
	hand = append(hand[:discardIdx], hand[discardIdx+1:]...)
	s.Hands[s.Dealer] = hand

	kitty := make([]card.Card, 0, len(s.Kitty))
	for _, c := range s.Kitty {
		if c != *s.Upcard {
			kitty = append(kitty, c)
		}
	}
	s.Kitty = append(kitty, discard)
}

// weakestCardIndex picks the discard: the lowest-ranking non-trump card,
// or the lowest trump when the hand is all trump. Deterministic so that
// supplied-deck games replay identically.
func weakestCardIndex(hand []card.Card, trump card.Suit) int {
	best := -1
	bestPower := 0
	for i, c := range hand {
		power := absolutePower(c, trump)
		if best == -1 || power < bestPower {
			best = i
			bestPower = power
		}
	}
	return best
}

func (e *Engine) applyCallTrump(s *State, a Action) *Reject {
	if s.Phase != PhaseRound2 {
		return rejectInvalidState("cannot call trump during %s", s.Phase)
	}
	if a.Actor != s.Bidding.Turn {
		return rejectNotYourTurn(a.Actor, s.Bidding.Turn)
	}
	if s.Bidding.TurnedDownSuit != nil && a.Trump == *s.Bidding.TurnedDownSuit {
		return rejectInvalidAction("%s was turned down and cannot be called", a.Trump)
	}

	s.beginPlay(a.Trump, a.Actor, a.Alone)
	return nil
}
