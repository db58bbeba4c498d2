package nbastats

import (
	"context"
	"fmt"
	"net/url"

	"github.com/courtdata/nba-sync/internal/usecase"
)

// FetchTeams returns the full franchise list.
func (c *Client) FetchTeams(ctx context.Context) ([]usecase.ExternalTeam, error) {
	var envelope teamsEnvelope
	found, err := c.fetchJSON(ctx, "/staticData/teams.json", false, &envelope)
	if err != nil {
		return nil, fmt.Errorf("fetch teams: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: teams listing is unavailable", usecase.ErrNoData)
	}

	out := make([]usecase.ExternalTeam, 0, len(envelope.Teams))
	for _, t := range envelope.Teams {
		out = append(out, usecase.ExternalTeam{
			TeamID:       t.TeamID,
			Abbreviation: t.Abbreviation,
			Nickname:     t.Nickname,
			City:         t.City,
			Conference:   t.Conference,
			Division:     t.Division,
			LogoURL:      t.LogoURL,
		})
	}
	return out, nil
}

// FetchPlayers returns one page of the roster listing plus the cursor
// for the next page; an empty cursor means the listing is drained.
func (c *Client) FetchPlayers(ctx context.Context, cursor string) ([]usecase.ExternalPlayer, string, error) {
	path := "/staticData/players.json"
	if cursor != "" {
		path += "?cursor=" + url.QueryEscape(cursor)
	}

	var envelope playersEnvelope
	found, err := c.fetchJSON(ctx, path, false, &envelope)
	if err != nil {
		return nil, "", fmt.Errorf("fetch players cursor=%q: %w", cursor, err)
	}
	if !found {
		return nil, "", fmt.Errorf("%w: player listing is unavailable", usecase.ErrNoData)
	}

	out := make([]usecase.ExternalPlayer, 0, len(envelope.Players))
	for _, p := range envelope.Players {
		out = append(out, usecase.ExternalPlayer{
			PersonID:         p.PersonID,
			DisplayFirstLast: p.DisplayFirstLast,
			FirstName:        p.FirstName,
			LastName:         p.LastName,
			TeamID:           p.TeamID,
			JerseyNum:        p.JerseyNum,
			Position:         p.Position,
			IsActive:         p.IsActive,
		})
	}
	return out, envelope.NextCursor, nil
}

// FetchSeasonSchedule returns every game of one season.
func (c *Client) FetchSeasonSchedule(ctx context.Context, season string) ([]usecase.ExternalGame, error) {
	if season == "" {
		return nil, fmt.Errorf("%w: season is required", usecase.ErrInvalidInput)
	}

	path := fmt.Sprintf("/staticData/scheduleLeagueV2_%s.json", url.PathEscape(season))
	var envelope scheduleEnvelope
	found, err := c.fetchJSON(ctx, path, false, &envelope)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule season=%s: %w", season, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: schedule for season=%s is unavailable", usecase.ErrNoData, season)
	}

	out := make([]usecase.ExternalGame, 0, 1312)
	for _, date := range envelope.LeagueSchedule.GameDates {
		for _, g := range date.Games {
			if g.GameID == "" {
				continue
			}
			out = append(out, usecase.ExternalGame{
				GameID:      g.GameID,
				Season:      season,
				Status:      g.GameStatus,
				DateTimeUTC: parseGameTime(g.GameDateTimeUTC),
				HomeTeamID:  g.HomeTeam.TeamID,
				AwayTeamID:  g.AwayTeam.TeamID,
				HomeScore:   g.HomeTeam.Score,
				AwayScore:   g.AwayTeam.Score,
				Arena:       g.ArenaName,
			})
		}
	}
	return out, nil
}

type teamsEnvelope struct {
	Teams []struct {
		TeamID       int64  `json:"teamId"`
		Abbreviation string `json:"abbreviation"`
		Nickname     string `json:"nickname"`
		City         string `json:"city"`
		Conference   string `json:"conference"`
		Division     string `json:"division"`
		LogoURL      string `json:"logoUrl"`
	} `json:"teams"`
}

type playersEnvelope struct {
	Players []struct {
		PersonID         int64  `json:"personId"`
		DisplayFirstLast string `json:"displayFirstLast"`
		FirstName        string `json:"firstName"`
		LastName         string `json:"lastName"`
		TeamID           int64  `json:"teamId"`
		JerseyNum        string `json:"jerseyNum"`
		Position         string `json:"position"`
		IsActive         bool   `json:"isActive"`
	} `json:"players"`
	NextCursor string `json:"nextCursor"`
}

type scheduleEnvelope struct {
	LeagueSchedule struct {
		SeasonYear string `json:"seasonYear"`
		GameDates  []struct {
			GameDate string         `json:"gameDate"`
			Games    []scheduleGame `json:"games"`
		} `json:"gameDates"`
	} `json:"leagueSchedule"`
}

type scheduleGame struct {
	GameID          string           `json:"gameId"`
	GameStatus      int              `json:"gameStatus"`
	GameDateTimeUTC string           `json:"gameDateTimeUTC"`
	ArenaName       string           `json:"arenaName"`
	HomeTeam        scheduleGameTeam `json:"homeTeam"`
	AwayTeam        scheduleGameTeam `json:"awayTeam"`
}

type scheduleGameTeam struct {
	TeamID int64 `json:"teamId"`
	Score  int   `json:"score"`
}
