package player

import "time"

// Player is one player row in the reference store.
type Player struct {
	PersonID         int64
	DisplayFirstLast string
	FirstName        string
	LastName         string
	TeamID           int64
	JerseyNum        string
	Position         string
	IsActive         bool
	LastSynced       time.Time
	UpdatedAt        time.Time
}
