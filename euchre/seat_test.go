package euchre

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatGeometry(t *testing.T) {
	assert.Equal(t, East, North.Next())
	assert.Equal(t, North, West.Next())
	assert.Equal(t, South, North.Partner())
	assert.Equal(t, West, East.Partner())
	assert.Equal(t, TeamA, North.Team())
	assert.Equal(t, TeamA, South.Team())
	assert.Equal(t, TeamB, East.Team())
	assert.Equal(t, TeamB, West.Team())
	assert.Equal(t, TeamB, TeamA.Opponent())
}

func TestSeatWireEncoding(t *testing.T) {
	raw, err := json.Marshal(West)
	require.NoError(t, err)
	assert.Equal(t, `"west"`, string(raw))

	var seat Seat
	require.NoError(t, json.Unmarshal([]byte(`"south"`), &seat))
	assert.Equal(t, South, seat)

	assert.Error(t, json.Unmarshal([]byte(`"centre"`), &seat))

	_, err = ParseSeat("North")
	assert.Error(t, err, "seat names are lowercase on the wire")
}

func TestNextActiveSeatSkipsSitOut(t *testing.T) {
	sitOut := South
	s := State{Alone: true, PartnerSitsOut: &sitOut}
	assert.Equal(t, West, s.NextActiveSeat(East))
	assert.Equal(t, []Seat{North, East, West}, s.ActiveSeats())
}
