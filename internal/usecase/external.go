package usecase

import (
	"context"
	"time"
)

// StatsProvider is the per-game fetcher contract. Both calls return
// (nil, nil) only when the upstream legitimately has no payload for the
// game; any transport problem is an error, never a nil payload.
type StatsProvider interface {
	FetchBoxscore(ctx context.Context, gameID string, force bool) (*ExternalBoxscore, error)
	FetchPlayByPlay(ctx context.Context, gameID string, force bool) (*ExternalPlayByPlay, error)
}

// ReferenceProvider feeds the reference sync service. Player listing is
// cursor-paged so very large rosters can be synced across passes.
type ReferenceProvider interface {
	FetchTeams(ctx context.Context) ([]ExternalTeam, error)
	FetchPlayers(ctx context.Context, cursor string) ([]ExternalPlayer, string, error)
	FetchSeasonSchedule(ctx context.Context, season string) ([]ExternalGame, error)
}

type ExternalBoxscore struct {
	GameID         string
	GameTimeUTC    time.Time
	VideoAvailable bool
	HomeTeam       ExternalBoxTeam
	AwayTeam       ExternalBoxTeam
}

type ExternalBoxTeam struct {
	TeamID   int64
	Tricode  string
	TeamName string
	TeamCity string
	Score    int
	Players  []ExternalPlayerLine
}

type ExternalPlayerLine struct {
	PersonID   int64
	FirstName  string
	FamilyName string
	JerseyNum  string
	Position   string
	Comment    string
	Starter    bool
	Statistics ExternalStatLine
}

type ExternalStatLine struct {
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

type ExternalPlayByPlay struct {
	GameID  string
	Actions []ExternalAction
}

type ExternalAction struct {
	ActionNumber   int
	Clock          string
	Period         int
	TeamID         int64
	TeamTricode    string
	PersonID       int64
	PlayerName     string
	XLegacy        int
	YLegacy        int
	ShotDistance   int
	ShotResult     string
	IsFieldGoal    bool
	ScoreHome      int
	ScoreAway      int
	PointsTotal    int
	Location       string
	Description    string
	ActionType     string
	SubType        string
	VideoAvailable bool
}

type ExternalTeam struct {
	TeamID       int64
	Abbreviation string
	Nickname     string
	City         string
	Conference   string
	Division     string
	LogoURL      string
}

type ExternalPlayer struct {
	PersonID         int64
	DisplayFirstLast string
	FirstName        string
	LastName         string
	TeamID           int64
	JerseyNum        string
	Position         string
	IsActive         bool
}

type ExternalGame struct {
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
