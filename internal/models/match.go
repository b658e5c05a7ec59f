package models

import (
	"time"

	"gorm.io/gorm"
)

// Match winners.
const (
	WinnerMafia = "MAFIA"
	WinnerCivil = "CIVIL"
)

// Match is one played game within a room. A room has at most one
// unfinished match (EndedAt == nil) at any time; recency picks the
// active one.
type Match struct {
	gorm.Model
	RoomID  uint    `gorm:"not null;index"`
	Winner  *string `gorm:"size:16"`
	EndedAt *time.Time
}
