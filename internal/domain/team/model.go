package team

import "time"

// Team is one NBA franchise row in the reference store.
type Team struct {
	TeamID       int64
	Abbreviation string
	Nickname     string
	City         string
	Conference   string
	Division     string
	LogoURL      string
	UpdatedAt    time.Time
}
