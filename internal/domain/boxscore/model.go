package boxscore

import "time"

// Row is one player's final line for one game, keyed by (GameID, PersonID).
// Game context is embedded so a single row is self-describing.
type Row struct {
	GameID   string
	PersonID int64

	TeamID         int64
	TeamTricode    string
	HomeTeamID     int64
	AwayTeamID     int64
	HomeTricode    string
	AwayTricode    string
	HomeTeamName   string
	AwayTeamName   string
	HomeScore      int
	AwayScore      int
	GameDate       time.Time
	GameStatus     int
	VideoAvailable bool

	FirstName        string
	FamilyName       string
	DisplayFirstLast string
	JerseyNum        string
	Position         string
	IsStarter        bool
	Comment          string

	Minutes           string
	FieldGoalsMade    int
	FieldGoalsAtt     int
	FieldGoalsPct     float64
	ThreePointersMade int
	ThreePointersAtt  int
	ThreePointersPct  float64
	FreeThrowsMade    int
	FreeThrowsAtt     int
	FreeThrowsPct     float64
	ReboundsOff       int
	ReboundsDef       int
	ReboundsTotal     int
	Assists           int
	Steals            int
	Blocks            int
	Turnovers         int
	FoulsPersonal     int
	Points            int
	PlusMinus         float64
}
