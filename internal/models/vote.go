package models

import "gorm.io/gorm"

// Vote types.
const (
	VoteLynch = "LYNCH"
)

// Vote is a day-phase ballot. TargetPlayerID zero encodes "skip".
// Votes are deleted on lobby reset; within a match they are scoped by
// (day, round) so runoff ballots never collide with round-1 ballots.
type Vote struct {
	gorm.Model
	RoomID         uint   `gorm:"not null;uniqueIndex:idx_vote"`
	VoterID        uint   `gorm:"not null;uniqueIndex:idx_vote"`
	Type           string `gorm:"size:16;not null;uniqueIndex:idx_vote"`
	DayNumber      int    `gorm:"not null;uniqueIndex:idx_vote"`
	Round          int    `gorm:"not null;uniqueIndex:idx_vote"`
	TargetPlayerID uint   `gorm:"not null;default:0"`
}
