package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mafia/backend/internal/engine"
	"mafia/backend/internal/models"
)

func botSeats() []models.Player {
	mk := func(id uint, role engine.Role, alive bool) models.Player {
		p := models.Player{Role: string(role), Alive: alive}
		p.ID = id
		return p
	}
	return []models.Player{
		mk(1, engine.RoleMafia, true),
		mk(2, engine.RoleDon, true),
		mk(3, engine.RoleDoctor, true),
		mk(4, engine.RoleSheriff, true),
		mk(5, engine.RoleCivilian, true),
		mk(6, engine.RoleCivilian, false),
	}
}

func seatByID(players []models.Player, id uint) models.Player {
	for _, p := range players {
		if p.ID == id {
			return p
		}
	}
	return models.Player{}
}

func TestNightCandidatesMafiaExcludesAlliesAndDead(t *testing.T) {
	players := botSeats()
	seat := seatByID(players, 1)

	out := nightCandidates(players, seat, engine.RoleMafia)
	assert.ElementsMatch(t, []uint{3, 4, 5}, out)
}

func TestNightCandidatesDoctorMayTargetAnyoneAlive(t *testing.T) {
	players := botSeats()
	seat := seatByID(players, 3)

	out := nightCandidates(players, seat, engine.RoleDoctor)
	assert.ElementsMatch(t, []uint{1, 2, 3, 4, 5}, out, "self-heal is in the pool")
}

func TestNightCandidatesInvestigatorExcludesSelf(t *testing.T) {
	players := botSeats()
	seat := seatByID(players, 4)

	out := nightCandidates(players, seat, engine.RoleSheriff)
	assert.ElementsMatch(t, []uint{1, 2, 3, 5}, out)
}

func TestNightCandidatesCivilianHasNone(t *testing.T) {
	players := botSeats()
	seat := seatByID(players, 5)

	assert.Empty(t, nightCandidates(players, seat, engine.RoleCivilian))
}

func TestVoteCandidatesOpenRound(t *testing.T) {
	players := botSeats()
	voter := seatByID(players, 5)

	out := voteCandidates(players, voter, nil)
	assert.ElementsMatch(t, []uint{engine.SkipVote, 1, 2, 3, 4}, out,
		"skip plus every other alive seat")
}

func TestVoteCandidatesRunoffRestrictsToLeaders(t *testing.T) {
	players := botSeats()
	voter := seatByID(players, 5)

	leaders := []uint{2, 4}
	out := voteCandidates(players, voter, leaders)
	assert.Equal(t, leaders, out)

	// The returned pool must be a copy the caller can shuffle safely.
	out[0] = 99
	assert.Equal(t, uint(2), leaders[0])
}

func TestHasAliveDon(t *testing.T) {
	players := botSeats()
	assert.True(t, hasAliveDon(players))

	for i := range players {
		if players[i].Role == string(engine.RoleDon) {
			players[i].Alive = false
		}
	}
	assert.False(t, hasAliveDon(players))
}
