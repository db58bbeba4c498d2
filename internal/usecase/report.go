package usecase

import "time"

const (
	GameOutcomeSuccess      = "success"
	GameOutcomeFailed       = "failed"
	GameOutcomeNoData       = "no_data"
	GameOutcomeSkipped      = "skipped"
	GameOutcomeNotAttempted = "not_attempted"
)

const (
	PassStatusSuccess         = "success"
	PassStatusPartiallyFailed = "partially_failed"
	PassStatusFailed          = "failed"
	PassStatusSkipped         = "skipped"
)

// GameOutcome is the terminal result for one game in one batch run.
type GameOutcome struct {
	GameID     string `json:"game_id"`
	Status     string `json:"status"`
	Items      int    `json:"items"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// BatchReport aggregates one syncer's batch (or batch-with-retry) run.
type BatchReport struct {
	TotalGames      int           `json:"total_games"`
	SuccessfulGames int           `json:"successful_games"`
	FailedGames     int           `json:"failed_games"`
	SkippedGames    int           `json:"skipped_games"`
	NoDataGames     int           `json:"no_data_games,omitempty"`
	NotAttempted    int           `json:"not_attempted,omitempty"`
	RetryRounds     int           `json:"retry_rounds,omitempty"`
	Status          string        `json:"status"`
	Details         []GameOutcome `json:"details"`
}

// FailedGameIDs returns the games whose latest outcome in this report is
// failed with a retryable error kind for the given attempt.
func (r BatchReport) FailedGameIDs(attempt int) []string {
	out := make([]string, 0, r.FailedGames)
	for _, outcome := range r.Details {
		if outcome.Status != GameOutcomeFailed {
			continue
		}
		if !retryableKind(outcome.ErrorKind, attempt) {
			continue
		}
		out = append(out, outcome.GameID)
	}
	return out
}

func (r *BatchReport) recount() {
	r.TotalGames = len(r.Details)
	r.SuccessfulGames = 0
	r.FailedGames = 0
	r.SkippedGames = 0
	r.NoDataGames = 0
	r.NotAttempted = 0
	for _, outcome := range r.Details {
		switch outcome.Status {
		case GameOutcomeSuccess:
			r.SuccessfulGames++
		case GameOutcomeFailed:
			r.FailedGames++
		case GameOutcomeSkipped:
			r.SkippedGames++
		case GameOutcomeNoData:
			r.NoDataGames++
		case GameOutcomeNotAttempted:
			r.NotAttempted++
		}
	}

	switch {
	case r.FailedGames == 0 && r.NotAttempted == 0:
		r.Status = PassStatusSuccess
	case r.SuccessfulGames == 0 && r.NoDataGames == 0 && r.NotAttempted == 0:
		r.Status = PassStatusFailed
	default:
		r.Status = PassStatusPartiallyFailed
	}
}

// PhaseReport is one sync kind's slice of a pass.
type PhaseReport struct {
	Kind    string      `json:"kind"`
	ToSync  int         `json:"to_sync"`
	Skipped bool        `json:"skipped,omitempty"`
	Batch   BatchReport `json:"batch"`
}

// SegmentReport is one 800-game segment of a segmented pass.
type SegmentReport struct {
	Index      int         `json:"index"`
	Boxscore   PhaseReport `json:"boxscore"`
	PlayByPlay PhaseReport `json:"playbyplay"`
	Status     string      `json:"status"`
	StartTime  time.Time   `json:"start_time"`
	EndTime    time.Time   `json:"end_time"`
}

// PassDetails groups per-kind reports inside a PassReport.
type PassDetails struct {
	Boxscore   PhaseReport `json:"boxscore"`
	PlayByPlay PhaseReport `json:"playbyplay"`
}

// PassReport is the boundary document returned from one manager pass.
type PassReport struct {
	Status           string          `json:"status"`
	StartTime        time.Time       `json:"start_time"`
	EndTime          time.Time       `json:"end_time"`
	DurationSeconds  float64         `json:"duration"`
	TotalGames       int             `json:"total_games"`
	GamesToSync      int             `json:"games_to_sync"`
	BoxscoreToSync   int             `json:"boxscore_to_sync"`
	PlayByPlayToSync int             `json:"playbyplay_to_sync"`
	NeedsVerify      int             `json:"needs_verify,omitempty"`
	Segmented        bool            `json:"segmented,omitempty"`
	Details          PassDetails     `json:"details"`
	Segments         []SegmentReport `json:"segments,omitempty"`
	Error            string          `json:"error,omitempty"`
}
