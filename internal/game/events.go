package game

import (
	"encoding/json"

	"mafia/backend/internal/models"
)

// NightPayload records a resolved night in the match's event log.
type NightPayload struct {
	Night       int    `json:"night"`
	Deaths      []uint `json:"deaths"`
	Saved       []uint `json:"saved,omitempty"`
	Blocked     []uint `json:"blocked,omitempty"`
	Guarded     *uint  `json:"guarded,omitempty"`
	MafiaTarget *uint  `json:"mafia_target,omitempty"`
}

// RunoffPayload records a round-1 tie and the leaders carried into
// round 2. It is what round recovery reads after a restart.
type RunoffPayload struct {
	Day     int    `json:"day"`
	Leaders []uint `json:"leaders"`
}

// VotePayload records a closed vote (lynch, skip win, or round-2 tie).
type VotePayload struct {
	Day     int   `json:"day"`
	Round   int   `json:"round"`
	Lynched *uint `json:"lynched,omitempty"`
	Tie     bool  `json:"tie,omitempty"`
}

// EndPayload records the match outcome.
type EndPayload struct {
	Winner string `json:"winner"`
}

// RoundFromEvents reconstructs the vote round in progress for the given
// day from the append-only event log, together with the runoff candidate
// values when round 2 is active. Memory is never consulted: a process
// that reboots mid-runoff recovers round 2 from here.
func RoundFromEvents(events []models.Event, day int) (round int, leaders []uint) {
	round = 1
	for _, e := range events {
		switch e.Phase {
		case models.EventVoteRunoff:
			var p RunoffPayload
			if json.Unmarshal([]byte(e.Payload), &p) == nil && p.Day == day {
				round = 2
				leaders = p.Leaders
			}
		case models.EventVoteResolved:
			var p VotePayload
			if json.Unmarshal([]byte(e.Payload), &p) == nil && p.Day == day {
				round = 1
				leaders = nil
			}
		}
	}
	return round, leaders
}
