package euchre

// HandPoints returns who scored the finished hand and how much:
// 3-4 tricks for the makers is 1 point, a march 2, a lone march 4, and a
// euchre hands the defenders 2.
func HandPoints(maker Team, makerTricks int, alone bool) (Team, int) {
	switch {
	case makerTricks >= TricksPerHand && alone:
		return maker, 4
	case makerTricks >= TricksPerHand:
		return maker, 2
	case makerTricks >= 3:
		return maker, 1
	default:
		return maker.Opponent(), 2
	}
}

func (e *Engine) applyScoreHand(s *State, a Action) *Reject {
	if s.Phase != PhaseScore {
		return rejectInvalidState("cannot score during %s", s.Phase)
	}

	maker := s.Maker.Team()
	team, points := HandPoints(maker, s.TricksWon.Get(maker), s.Alone)
	s.Scores.Add(team, points)

	if s.Scores.Get(team) >= s.TargetScore {
		winner := team
		s.Winner = &winner
		s.Phase = PhaseCompleted
		s.Bidding = nil
		s.Trick = nil
		return nil
	}

	// Next hand: the deal moves left and all hand-scoped state resets.
	s.Dealer = s.Dealer.Next()
	s.Turn = s.Dealer.Next()
	s.Trump = nil
	s.Maker = nil
	s.Alone = false
	s.PartnerSitsOut = nil
	s.Hands = nil
	s.Upcard = nil
	s.Kitty = nil
	s.Bidding = nil
	s.Trick = nil
	s.TricksWon = TeamTally{}
	s.Phase = PhaseDeal
	return nil
}

// ResolveForfeit terminates a game in favor of the opposing team when a
// member of forfeiting abandons it: the opponents' score is raised to the
// target (never lowered), the game completes, and no trick state survives.
func ResolveForfeit(s State, forfeiting Team) State {
	out := s.Clone()
	opponent := forfeiting.Opponent()
	if out.Scores.Get(opponent) < out.TargetScore {
		out.Scores.Set(opponent, out.TargetScore)
	}
	winner := opponent
	out.Winner = &winner
	out.Phase = PhaseCompleted
	out.Bidding = nil
	out.Trick = nil
	return out
}
