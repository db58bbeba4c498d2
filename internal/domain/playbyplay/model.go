package playbyplay

// Event is one play-by-play action for one game, keyed by
// (GameID, ActionNumber).
type Event struct {
	GameID       string
	ActionNumber int

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
