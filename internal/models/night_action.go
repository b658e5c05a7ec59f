package models

import "gorm.io/gorm"

// NightAction is a role's submitted action for one night of a match.
// At most one row exists per (match, night, actor); mafia-side actors may
// retarget by updating the row while the night is open, all other roles
// may not. Rows are never mutated after their night resolves.
//
// A nil TargetPlayerID encodes a skip.
type NightAction struct {
	gorm.Model
	MatchID        uint   `gorm:"not null;uniqueIndex:idx_night_action"`
	NightNumber    int    `gorm:"not null;uniqueIndex:idx_night_action"`
	ActorPlayerID  uint   `gorm:"not null;uniqueIndex:idx_night_action"`
	Role           string `gorm:"size:16;not null"`
	TargetPlayerID *uint
}
