package models

import (
	"time"

	"gorm.io/gorm"
)

// Room statuses. A room cycles LOBBY -> NIGHT -> DAY -> VOTE -> (NIGHT|ENDED)
// and returns to LOBBY only via an explicit reset.
const (
	RoomLobby = "LOBBY"
	RoomNight = "NIGHT"
	RoomDay   = "DAY"
	RoomVote  = "VOTE"
	RoomEnded = "ENDED"
)

// Room represents a shared game room.
//
// PhaseEndsAt is non-nil exactly while a timed phase (NIGHT/DAY/VOTE) is
// outstanding; it is the durable source of truth the scheduler rebuilds
// its timers from after a restart.
type Room struct {
	gorm.Model
	Code        string `gorm:"size:16;unique;not null"`
	Status      string `gorm:"size:16;not null;default:'LOBBY';index"`
	OwnerID     uint   `gorm:"not null"`
	DayNumber   int    `gorm:"not null;default:0"`
	PhaseEndsAt *time.Time

	Owner   User     `gorm:"foreignKey:OwnerID"`
	Players []Player `gorm:"foreignKey:RoomID"`
}

// TimedPhase reports whether the room's current status carries a deadline.
func (r *Room) TimedPhase() bool {
	switch r.Status {
	case RoomNight, RoomDay, RoomVote:
		return true
	}
	return false
}

// NightNumber returns the number keying NightAction rows for the night
// currently in progress (or about to start). The first night runs while
// DayNumber is still 0.
func (r *Room) NightNumber() int {
	return r.DayNumber + 1
}
