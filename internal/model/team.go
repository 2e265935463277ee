package model

import "fmt"

type Team uint8

const (
	White Team = iota
	Black
)

// Teams lists both teams, White first.
var Teams = [...]Team{White, Black}

// teamInfo holds the rows and direction that differ between the teams.
type teamInfo struct {
	pawnDirection int
	pawnStartRow  int
	promotionRow  int
	backRow       int
}

var teamTable = [...]teamInfo{
	White: {pawnDirection: 1, pawnStartRow: 2, promotionRow: 8, backRow: 1},
	Black: {pawnDirection: -1, pawnStartRow: 7, promotionRow: 1, backRow: 8},
}

func (t Team) info() teamInfo {
	return teamTable[t]
}

// Opponent returns the other team.
func (t Team) Opponent() Team {
	if t == White {
		return Black
	}
	return White
}

// BackRow is the row the team's king and rooks start on.
func (t Team) BackRow() int {
	return t.info().backRow
}

// PromotionRow is the row where the team's pawns promote.
func (t Team) PromotionRow() int {
	return t.info().promotionRow
}

func (t Team) String() string {
	switch t {
	case White:
		return "white"
	case Black:
		return "black"
	}
	return fmt.Sprintf("Team(%d)", uint8(t))
}

func (t Team) MarshalText() ([]byte, error) {
	if t != White && t != Black {
		return nil, fmt.Errorf("unknown team %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *Team) UnmarshalText(text []byte) error {
	switch string(text) {
	case "white":
		*t = White
	case "black":
		*t = Black
	default:
		return fmt.Errorf("unknown team %q", text)
	}
	return nil
}
