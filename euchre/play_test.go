package euchre

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fun-euchre/card"
)

func mustCards(t *testing.T, raws ...string) []card.Card {
	t.Helper()
	out := make([]card.Card, len(raws))
	for i, raw := range raws {
		out[i] = mustCard(t, raw)
	}
	return out
}

// playState builds a mid-hand play phase with hearts as trump, maker north,
// and the given hands, ready for leader to lead trick number.
func playState(t *testing.T, hands map[Seat][]card.Card, leader Seat, trickNo int) State {
	t.Helper()
	trump := card.Hearts
	maker := North
	return State{
		Phase:       PhasePlay,
		HandNumber:  1,
		Dealer:      West,
		Turn:        leader,
		Trump:       &trump,
		Maker:       &maker,
		Hands:       hands,
		Trick:       &Trick{Number: trickNo, Leader: leader, Turn: leader},
		Scores:      TeamTally{},
		TargetScore: 10,
	}
}

func TestEffectiveSuitBowers(t *testing.T) {
	assert.Equal(t, card.Hearts, EffectiveSuit(mustCard(t, "diamonds:J"), card.Hearts))
	assert.Equal(t, card.Hearts, EffectiveSuit(mustCard(t, "hearts:J"), card.Hearts))
	assert.Equal(t, card.Clubs, EffectiveSuit(mustCard(t, "clubs:J"), card.Hearts))
	assert.Equal(t, card.Diamonds, EffectiveSuit(mustCard(t, "diamonds:J"), card.Clubs))
}

func TestTrickWinnerRanking(t *testing.T) {
	cases := []struct {
		name  string
		trump card.Suit
		plays []Play
		want  Seat
	}{
		{
			name:  "right bower beats left beats trump ace",
			trump: card.Hearts,
			plays: []Play{
				{Seat: North, Card: mustCard(t, "hearts:A")},
				{Seat: East, Card: mustCard(t, "diamonds:J")},
				{Seat: South, Card: mustCard(t, "hearts:J")},
				{Seat: West, Card: mustCard(t, "hearts:K")},
			},
			want: South,
		},
		{
			name:  "low trump beats lead-suit ace",
			trump: card.Spades,
			plays: []Play{
				{Seat: East, Card: mustCard(t, "diamonds:A")},
				{Seat: South, Card: mustCard(t, "diamonds:K")},
				{Seat: West, Card: mustCard(t, "spades:9")},
				{Seat: North, Card: mustCard(t, "diamonds:Q")},
			},
			want: West,
		},
		{
			name:  "off-suit never wins",
			trump: card.Clubs,
			plays: []Play{
				{Seat: South, Card: mustCard(t, "spades:10")},
				{Seat: West, Card: mustCard(t, "hearts:A")},
				{Seat: North, Card: mustCard(t, "diamonds:A")},
				{Seat: East, Card: mustCard(t, "spades:9")},
			},
			want: South,
		},
		{
			name:  "left bower led counts as trump lead",
			trump: card.Hearts,
			plays: []Play{
				{Seat: West, Card: mustCard(t, "diamonds:J")},
				{Seat: North, Card: mustCard(t, "hearts:10")},
				{Seat: East, Card: mustCard(t, "diamonds:A")},
				{Seat: South, Card: mustCard(t, "hearts:Q")},
			},
			want: West,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, trickWinner(tc.plays, tc.trump))
		})
	}
}

func TestLegalPlaysFollowSuit(t *testing.T) {
	trump := card.Hearts
	hand := mustCards(t, "diamonds:J", "clubs:9", "spades:A")

	// Hearts led: the left bower is the hand's only heart.
	trick := &Trick{Number: 1, Leader: North, Turn: East,
		Plays: []Play{{Seat: North, Card: mustCard(t, "hearts:A")}}}
	assert.Equal(t, mustCards(t, "diamonds:J"), LegalPlays(hand, trick, trump))

	// Diamonds led: the left bower does not count as a diamond, so the
	// hand is void and anything goes.
	trick = &Trick{Number: 1, Leader: North, Turn: East,
		Plays: []Play{{Seat: North, Card: mustCard(t, "diamonds:K")}}}
	assert.Len(t, LegalPlays(hand, trick, trump), 3)

	// Leading: everything is legal.
	assert.Len(t, LegalPlays(hand, &Trick{Number: 1}, trump), 3)
}

func TestPlayOutOfTurnLeavesStateUntouched(t *testing.T) {
	e := newTestEngine()
	hands := map[Seat][]card.Card{
		North: mustCards(t, "hearts:A"),
		East:  mustCards(t, "clubs:9"),
		South: mustCards(t, "spades:9"),
		West:  mustCards(t, "diamonds:9"),
	}
	s := playState(t, hands, North, 5)
	before := s.Clone()

	_, rej := e.Apply(s, Action{Type: ActionPlayCard, Actor: East, Card: mustCard(t, "clubs:9")})
	require.NotNil(t, rej)
	assert.Equal(t, CodeNotYourTurn, rej.Code)
	assert.Equal(t, before, s)
}

func TestMustFollowSuitRejected(t *testing.T) {
	e := newTestEngine()
	hands := map[Seat][]card.Card{
		North: mustCards(t, "hearts:A", "spades:9"),
		East:  mustCards(t, "diamonds:J", "clubs:9"),
		South: mustCards(t, "spades:10", "spades:J"),
		West:  mustCards(t, "diamonds:9", "diamonds:10"),
	}
	s := playState(t, hands, North, 4)
	s, rej := e.Apply(s, Action{Type: ActionPlayCard, Actor: North, Card: mustCard(t, "hearts:A")})
	require.Nil(t, rej)

	// East holds the left bower, which follows hearts; clubs:9 is a renege.
	_, rej = e.Apply(s, Action{Type: ActionPlayCard, Actor: East, Card: mustCard(t, "clubs:9")})
	require.NotNil(t, rej)
	assert.Equal(t, CodeInvalidAction, rej.Code)

	s, rej = e.Apply(s, Action{Type: ActionPlayCard, Actor: East, Card: mustCard(t, "diamonds:J")})
	require.Nil(t, rej)
	assert.Equal(t, South, s.Trick.Turn)
}

func TestCardNotHeldRejected(t *testing.T) {
	e := newTestEngine()
	hands := map[Seat][]card.Card{
		North: mustCards(t, "hearts:A"),
		East:  mustCards(t, "clubs:9"),
		South: mustCards(t, "spades:9"),
		West:  mustCards(t, "diamonds:9"),
	}
	s := playState(t, hands, North, 5)
	_, rej := e.Apply(s, Action{Type: ActionPlayCard, Actor: North, Card: mustCard(t, "spades:A")})
	require.NotNil(t, rej)
	assert.Equal(t, CodeInvalidAction, rej.Code)
}

func TestTrickResolutionAdvancesLeader(t *testing.T) {
	e := newTestEngine()
	hands := map[Seat][]card.Card{
		North: mustCards(t, "hearts:9", "clubs:A"),
		East:  mustCards(t, "hearts:J", "clubs:K"),
		South: mustCards(t, "hearts:10", "clubs:Q"),
		West:  mustCards(t, "hearts:Q", "clubs:10"),
	}
	s := playState(t, hands, North, 4)
	for _, play := range []struct {
		seat Seat
		raw  string
	}{
		{North, "hearts:9"}, {East, "hearts:J"}, {South, "hearts:10"}, {West, "hearts:Q"},
	} {
		next, rej := e.Apply(s, Action{Type: ActionPlayCard, Actor: play.seat, Card: mustCard(t, play.raw)})
		require.Nil(t, rej)
		s = next
	}

	// East took the trick with the right bower and leads the next one.
	assert.Equal(t, 1, s.TricksWon.Get(TeamB))
	require.NotNil(t, s.Trick)
	assert.Equal(t, 5, s.Trick.Number)
	assert.Equal(t, East, s.Trick.Leader)
	assert.Equal(t, East, s.Turn)
	assert.Empty(t, s.Trick.Plays)
}

func TestSittingOutSeatCannotPlay(t *testing.T) {
	e := newTestEngine()
	hands := map[Seat][]card.Card{
		North: mustCards(t, "hearts:9"),
		East:  mustCards(t, "clubs:9"),
		West:  mustCards(t, "diamonds:9"),
	}
	s := playState(t, hands, North, 5)
	s.Alone = true
	sitOut := South
	s.PartnerSitsOut = &sitOut
	s.Hands[South] = nil

	_, rej := e.Apply(s, Action{Type: ActionPlayCard, Actor: South, Card: mustCard(t, "spades:9")})
	require.NotNil(t, rej)
	assert.Equal(t, CodeInvalidAction, rej.Code)
}

func TestAloneTrickResolvesAfterThreePlays(t *testing.T) {
	e := newTestEngine()
	hands := map[Seat][]card.Card{
		North: mustCards(t, "hearts:A"),
		East:  mustCards(t, "clubs:9"),
		West:  mustCards(t, "diamonds:9"),
	}
	s := playState(t, hands, North, 5)
	s.Alone = true
	sitOut := South
	s.PartnerSitsOut = &sitOut

	for _, play := range []struct {
		seat Seat
		raw  string
	}{
		{North, "hearts:A"}, {East, "clubs:9"}, {West, "diamonds:9"},
	} {
		next, rej := e.Apply(s, Action{Type: ActionPlayCard, Actor: play.seat, Card: mustCard(t, play.raw)})
		require.Nil(t, rej)
		s = next
	}

	assert.Equal(t, PhaseScore, s.Phase)
	assert.Nil(t, s.Trick)
	assert.Equal(t, 1, s.TricksWon.Get(TeamA))
}

func TestFifthTrickEndsHand(t *testing.T) {
	e := newTestEngine()
	hands := map[Seat][]card.Card{
		North: mustCards(t, "hearts:A"),
		East:  mustCards(t, "hearts:9"),
		South: mustCards(t, "hearts:K"),
		West:  mustCards(t, "hearts:10"),
	}
	s := playState(t, hands, North, 5)
	s.TricksWon = TeamTally{TeamA: 2, TeamB: 2}

	for _, play := range []struct {
		seat Seat
		raw  string
	}{
		{North, "hearts:A"}, {East, "hearts:9"}, {South, "hearts:K"}, {West, "hearts:10"},
	} {
		next, rej := e.Apply(s, Action{Type: ActionPlayCard, Actor: play.seat, Card: mustCard(t, play.raw)})
		require.Nil(t, rej)
		s = next
	}

	assert.Equal(t, PhaseScore, s.Phase)
	assert.Nil(t, s.Trick)
	assert.Equal(t, TeamTally{TeamA: 3, TeamB: 2}, s.TricksWon)
	assert.Equal(t, North, s.Turn)
}

// TestFullHandConservesCards orders up the canonical deal and plays the hand
// to the score phase always choosing the first legal card, checking after
// every play that the 20 dealt cards stay accounted for.
func TestFullHandConservesCards(t *testing.T) {
	e := newTestEngine()
	s, rej := e.Apply(dealCanonical(t), Action{Type: ActionOrderUp, Actor: East})
	require.Nil(t, rej)

	plays := 0
	for s.Phase == PhasePlay {
		actor := s.Trick.Turn
		legal := LegalPlays(s.Hands[actor], s.Trick, *s.Trump)
		require.NotEmpty(t, legal)

		next, rej := e.Apply(s, Action{Type: ActionPlayCard, Actor: actor, Card: legal[0]})
		require.Nil(t, rej)
		s = next
		plays++
		require.LessOrEqual(t, plays, 20)

		inHands := 0
		for _, hand := range s.Hands {
			inHands += len(hand)
		}
		inTrick := 0
		if s.Trick != nil {
			inTrick = len(s.Trick.Plays)
		}
		finished := s.TricksWon.Total()
		assert.Equal(t, 20, inHands+inTrick+finished*4,
			"cards must stay conserved after play %d", plays)
	}

	assert.Equal(t, 20, plays)
	assert.Equal(t, PhaseScore, s.Phase)
	assert.Equal(t, TricksPerHand, s.TricksWon.Total())
}
