package engine

import "errors"

// Validation rejections. These are surfaced synchronously to the
// submitter and never mutate state.
var (
	ErrNoComposition  = errors.New("no role composition for this player count")
	ErrUnknownRole    = errors.New("unknown role")
	ErrRoleMismatch   = errors.New("submitted role does not match seat role")
	ErrActorDead      = errors.New("dead seats cannot act")
	ErrActorNotFound  = errors.New("actor is not seated in this room")
	ErrActionExists   = errors.New("this role cannot change its night action")
	ErrTargetRequired = errors.New("this role must pick a target")
	ErrTargetNotFound = errors.New("target is not seated in this room")
	ErrTargetDead     = errors.New("cannot target a dead seat")
	ErrTargetSelf     = errors.New("cannot target yourself")
	ErrTargetAlly     = errors.New("cannot target your own side")
	ErrRepeatTarget   = errors.New("cannot pick the same target on consecutive nights")
	ErrSelfHealSpent  = errors.New("self-heal already used this match")
	ErrSniperSpent    = errors.New("sniper shot already used this match")
	ErrRunoffTarget   = errors.New("target is not among the runoff candidates")
	ErrVoterDead      = errors.New("dead seats cannot vote")
	ErrVoterNotFound  = errors.New("voter is not seated in this room")
)
