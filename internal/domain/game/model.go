package game

import "time"

const (
	StatusScheduled = 1
	StatusLive      = 2
	StatusFinal     = 3
)

// Game is one scheduled NBA game from the reference store. Only the
// schedule sync path mutates these rows.
type Game struct {
	GameID      string
	Season      string
	Status      int
	DateTimeUTC time.Time
	HomeTeamID  int64
	AwayTeamID  int64
	HomeScore   int
	AwayScore   int
	Arena       string
}

func (g Game) IsFinished() bool {
	return g.Status == StatusFinal
}

func (g Game) IsLive() bool {
	return g.Status == StatusLive
}
