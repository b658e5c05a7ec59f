package models

import "gorm.io/gorm"

// Event phases recorded in the append-only match log.
const (
	EventNightResolved = "night_resolved"
	EventVoteRunoff    = "vote_runoff"
	EventVoteResolved  = "vote_resolved"
	EventMatchEnded    = "match_ended"
)

// Event is one append-only log entry recording a phase transition's
// computed outcome (kills, runoff leaders, lynch result). The log is the
// source of truth for reconstructing the active vote round after a
// restart and is never deleted while its match exists.
type Event struct {
	gorm.Model
	MatchID uint   `gorm:"not null;index"`
	Phase   string `gorm:"size:32;not null"`
	Payload string `gorm:"type:jsonb;not null;default:'{}'"`
}
