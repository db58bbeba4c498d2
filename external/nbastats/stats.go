package nbastats

import (
	"context"
	"fmt"
	"time"

	"github.com/courtdata/nba-sync/internal/usecase"
)

// FetchBoxscore returns the final boxscore for one game, or (nil, nil)
// when the CDN has no payload for it.
func (c *Client) FetchBoxscore(ctx context.Context, gameID string, force bool) (*usecase.ExternalBoxscore, error) {
	if gameID == "" {
		return nil, fmt.Errorf("%w: game id is required", usecase.ErrInvalidInput)
	}

	path := fmt.Sprintf("/liveData/boxscore/boxscore_%s.json", gameID)
	var envelope boxscoreEnvelope
	found, err := c.fetchJSON(ctx, path, force, &envelope)
	if err != nil {
		return nil, fmt.Errorf("fetch boxscore game_id=%s: %w", gameID, err)
	}
	if !found {
		return nil, nil
	}
	if envelope.Game.GameID == "" {
		return nil, fmt.Errorf("%w: boxscore payload missing game id for game_id=%s", usecase.ErrParse, gameID)
	}

	out := &usecase.ExternalBoxscore{
		GameID:         envelope.Game.GameID,
		GameTimeUTC:    parseGameTime(envelope.Game.GameTimeUTC),
		VideoAvailable: envelope.Game.VideoAvailable,
		HomeTeam:       mapBoxTeam(envelope.Game.HomeTeam),
		AwayTeam:       mapBoxTeam(envelope.Game.AwayTeam),
	}
	return out, nil
}

// FetchPlayByPlay returns one game's action stream, or (nil, nil) when
// the game legitimately has no play-by-play upstream.
func (c *Client) FetchPlayByPlay(ctx context.Context, gameID string, force bool) (*usecase.ExternalPlayByPlay, error) {
	if gameID == "" {
		return nil, fmt.Errorf("%w: game id is required", usecase.ErrInvalidInput)
	}

	path := fmt.Sprintf("/liveData/playbyplay/playbyplay_%s.json", gameID)
	var envelope playByPlayEnvelope
	found, err := c.fetchJSON(ctx, path, force, &envelope)
	if err != nil {
		return nil, fmt.Errorf("fetch playbyplay game_id=%s: %w", gameID, err)
	}
	if !found {
		return nil, nil
	}

	out := &usecase.ExternalPlayByPlay{
		GameID:  gameID,
		Actions: make([]usecase.ExternalAction, 0, len(envelope.Game.Actions)),
	}
	for _, action := range envelope.Game.Actions {
		out.Actions = append(out.Actions, usecase.ExternalAction{
			ActionNumber:   action.ActionNumber,
			Clock:          action.Clock,
			Period:         action.Period,
			TeamID:         action.TeamID,
			TeamTricode:    action.TeamTricode,
			PersonID:       action.PersonID,
			PlayerName:     action.PlayerName,
			XLegacy:        action.XLegacy,
			YLegacy:        action.YLegacy,
			ShotDistance:   action.ShotDistance,
			ShotResult:     action.ShotResult,
			IsFieldGoal:    action.IsFieldGoal == 1,
			ScoreHome:      parseScore(action.ScoreHome),
			ScoreAway:      parseScore(action.ScoreAway),
			PointsTotal:    action.PointsTotal,
			Location:       action.Location,
			Description:    action.Description,
			ActionType:     action.ActionType,
			SubType:        action.SubType,
			VideoAvailable: action.VideoAvailable == 1,
		})
	}
	return out, nil
}

type boxscoreEnvelope struct {
	Game struct {
		GameID         string  `json:"gameId"`
		GameTimeUTC    string  `json:"gameTimeUTC"`
		VideoAvailable bool    `json:"videoAvailable"`
		HomeTeam       boxTeam `json:"homeTeam"`
		AwayTeam       boxTeam `json:"awayTeam"`
	} `json:"game"`
}

type boxTeam struct {
	TeamID      int64       `json:"teamId"`
	TeamTricode string      `json:"teamTricode"`
	TeamCity    string      `json:"teamCity"`
	TeamName    string      `json:"teamName"`
	Score       int         `json:"score"`
	Players     []boxPlayer `json:"players"`
}

type boxPlayer struct {
	PersonID   int64        `json:"personId"`
	FirstName  string       `json:"firstName"`
	FamilyName string       `json:"familyName"`
	JerseyNum  string       `json:"jerseyNum"`
	Position   string       `json:"position"`
	Comment    string       `json:"notPlayingReason"`
	Starter    string       `json:"starter"`
	Statistics boxStatsLine `json:"statistics"`
}

type boxStatsLine struct {
	Minutes                 string  `json:"minutes"`
	FieldGoalsMade          int     `json:"fieldGoalsMade"`
	FieldGoalsAttempted     int     `json:"fieldGoalsAttempted"`
	FieldGoalsPercentage    float64 `json:"fieldGoalsPercentage"`
	ThreePointersMade       int     `json:"threePointersMade"`
	ThreePointersAttempted  int     `json:"threePointersAttempted"`
	ThreePointersPercentage float64 `json:"threePointersPercentage"`
	FreeThrowsMade          int     `json:"freeThrowsMade"`
	FreeThrowsAttempted     int     `json:"freeThrowsAttempted"`
	FreeThrowsPercentage    float64 `json:"freeThrowsPercentage"`
	ReboundsOffensive       int     `json:"reboundsOffensive"`
	ReboundsDefensive       int     `json:"reboundsDefensive"`
	ReboundsTotal           int     `json:"reboundsTotal"`
	Assists                 int     `json:"assists"`
	Steals                  int     `json:"steals"`
	Blocks                  int     `json:"blocks"`
	Turnovers               int     `json:"turnovers"`
	FoulsPersonal           int     `json:"foulsPersonal"`
	Points                  int     `json:"points"`
	PlusMinusPoints         float64 `json:"plusMinusPoints"`
}

type playByPlayEnvelope struct {
	Game struct {
		GameID  string      `json:"gameId"`
		Actions []pbpAction `json:"actions"`
	} `json:"game"`
}

type pbpAction struct {
	ActionNumber   int    `json:"actionNumber"`
	Clock          string `json:"clock"`
	Period         int    `json:"period"`
	TeamID         int64  `json:"teamId"`
	TeamTricode    string `json:"teamTricode"`
	PersonID       int64  `json:"personId"`
	PlayerName     string `json:"playerName"`
	XLegacy        int    `json:"xLegacy"`
	YLegacy        int    `json:"yLegacy"`
	ShotDistance   int    `json:"shotDistance"`
	ShotResult     string `json:"shotResult"`
	IsFieldGoal    int    `json:"isFieldGoal"`
	ScoreHome      string `json:"scoreHome"`
	ScoreAway      string `json:"scoreAway"`
	PointsTotal    int    `json:"pointsTotal"`
	Location       string `json:"location"`
	Description    string `json:"description"`
	ActionType     string `json:"actionType"`
	SubType        string `json:"subType"`
	VideoAvailable int    `json:"videoAvailable"`
}

func mapBoxTeam(team boxTeam) usecase.ExternalBoxTeam {
	out := usecase.ExternalBoxTeam{
		TeamID:   team.TeamID,
		Tricode:  team.TeamTricode,
		TeamName: team.TeamName,
		TeamCity: team.TeamCity,
		Score:    team.Score,
		Players:  make([]usecase.ExternalPlayerLine, 0, len(team.Players)),
	}
	for _, p := range team.Players {
		out.Players = append(out.Players, usecase.ExternalPlayerLine{
			PersonID:   p.PersonID,
			FirstName:  p.FirstName,
			FamilyName: p.FamilyName,
			JerseyNum:  p.JerseyNum,
			Position:   p.Position,
			Comment:    p.Comment,
			Starter:    p.Starter == "1",
			Statistics: usecase.ExternalStatLine{
				Minutes:           p.Statistics.Minutes,
				FieldGoalsMade:    p.Statistics.FieldGoalsMade,
				FieldGoalsAtt:     p.Statistics.FieldGoalsAttempted,
				FieldGoalsPct:     p.Statistics.FieldGoalsPercentage,
				ThreePointersMade: p.Statistics.ThreePointersMade,
				ThreePointersAtt:  p.Statistics.ThreePointersAttempted,
				ThreePointersPct:  p.Statistics.ThreePointersPercentage,
				FreeThrowsMade:    p.Statistics.FreeThrowsMade,
				FreeThrowsAtt:     p.Statistics.FreeThrowsAttempted,
				FreeThrowsPct:     p.Statistics.FreeThrowsPercentage,
				ReboundsOff:       p.Statistics.ReboundsOffensive,
				ReboundsDef:       p.Statistics.ReboundsDefensive,
				ReboundsTotal:     p.Statistics.ReboundsTotal,
				Assists:           p.Statistics.Assists,
				Steals:            p.Statistics.Steals,
				Blocks:            p.Statistics.Blocks,
				Turnovers:         p.Statistics.Turnovers,
				FoulsPersonal:     p.Statistics.FoulsPersonal,
				Points:            p.Statistics.Points,
				PlusMinus:         p.Statistics.PlusMinusPoints,
			},
		})
	}
	return out
}

func parseGameTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func parseScore(value string) int {
	score := 0
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0
		}
		score = score*10 + int(r-'0')
	}
	return score
}
