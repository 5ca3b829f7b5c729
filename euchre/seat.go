package euchre

import "fmt"

// Seat is a table position. Seats advance clockwise north → east → south
// → west → north.
type Seat byte

const (
	North Seat = iota
	East
	South
	West
)

var seatNames = map[Seat]string{
	North: "north",
	East:  "east",
	South: "south",
	West:  "west",
}

func (s Seat) String() string {
	if name, ok := seatNames[s]; ok {
		return name
	}
	return "?"
}

// Next returns the seat to the left.
func (s Seat) Next() Seat {
	return Seat((byte(s) + 1) % 4)
}

// Partner returns the seat across the table.
func (s Seat) Partner() Seat {
	return Seat((byte(s) + 2) % 4)
}

// Team returns the fixed partnership: north/south are teamA, east/west teamB.
func (s Seat) Team() Team {
	if s == North || s == South {
		return TeamA
	}
	return TeamB
}

// Seats returns all four seats in cyclic order starting at north.
func Seats() [4]Seat {
	return [4]Seat{North, East, South, West}
}

// ParseSeat converts a wire name ("north") to a Seat.
func ParseSeat(raw string) (Seat, error) {
	for seat, name := range seatNames {
		if raw == name {
			return seat, nil
		}
	}
	return 0, fmt.Errorf("invalid seat: %q", raw)
}

func (s Seat) MarshalText() ([]byte, error) {
	name, ok := seatNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid seat: %d", s)
	}
	return []byte(name), nil
}

func (s *Seat) UnmarshalText(text []byte) error {
	seat, err := ParseSeat(string(text))
	if err != nil {
		return err
	}
	*s = seat
	return nil
}

// Team is one of the two fixed partnerships.
type Team byte

const (
	TeamA Team = iota
	TeamB
)

var teamNames = map[Team]string{
	TeamA: "teamA",
	TeamB: "teamB",
}

func (t Team) String() string {
	if name, ok := teamNames[t]; ok {
		return name
	}
	return "?"
}

// Opponent returns the other partnership.
func (t Team) Opponent() Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

// ParseTeam converts a wire name ("teamA") to a Team.
func ParseTeam(raw string) (Team, error) {
	for team, name := range teamNames {
		if raw == name {
			return team, nil
		}
	}
	return 0, fmt.Errorf("invalid team: %q", raw)
}

func (t Team) MarshalText() ([]byte, error) {
	name, ok := teamNames[t]
	if !ok {
		return nil, fmt.Errorf("invalid team: %d", t)
	}
	return []byte(name), nil
}

func (t *Team) UnmarshalText(text []byte) error {
	team, err := ParseTeam(string(text))
	if err != nil {
		return err
	}
	*t = team
	return nil
}

// TeamTally holds one number per team, used for both trick counts and
// game scores.
type TeamTally struct {
	TeamA int `json:"teamA"`
	TeamB int `json:"teamB"`
}

func (tt TeamTally) Get(team Team) int {
	if team == TeamA {
		return tt.TeamA
	}
	return tt.TeamB
}

func (tt *TeamTally) Add(team Team, n int) {
	if team == TeamA {
		tt.TeamA += n
		return
	}
	tt.TeamB += n
}

func (tt *TeamTally) Set(team Team, n int) {
	if team == TeamA {
		tt.TeamA = n
		return
	}
	tt.TeamB = n
}

func (tt TeamTally) Total() int {
	return tt.TeamA + tt.TeamB
}
