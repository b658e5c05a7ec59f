package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(id uint) *uint { return &id }

func testRNG() *rand.Rand { return rand.New(rand.NewSource(1)) }

// Seat ids are stable across the night tests: 1 mafia, 2 don, 3 doctor,
// 4 sheriff, 5 prostitute, 6 bodyguard, 7 journalist, 8 sniper, 9-10 civilians.
func fullSeats() []Seat {
	return []Seat{
		{ID: 1, Role: RoleMafia, Alive: true},
		{ID: 2, Role: RoleDon, Alive: true},
		{ID: 3, Role: RoleDoctor, Alive: true},
		{ID: 4, Role: RoleSheriff, Alive: true},
		{ID: 5, Role: RoleProstitute, Alive: true},
		{ID: 6, Role: RoleBodyguard, Alive: true},
		{ID: 7, Role: RoleJournalist, Alive: true},
		{ID: 8, Role: RoleSniper, Alive: true},
		{ID: 9, Role: RoleCivilian, Alive: true},
		{ID: 10, Role: RoleCivilian, Alive: true},
	}
}

// --- validation ---

func TestValidateNightActionRejections(t *testing.T) {
	seats := fullSeats()
	seats[9].Alive = false // seat 10 dead

	cases := []struct {
		name   string
		actor  uint
		role   Role
		target *uint
		h      History
		want   error
	}{
		{"unknown actor", 99, RoleMafia, ptr(9), History{}, ErrActorNotFound},
		{"dead actor", 10, RoleCivilian, nil, History{}, ErrActorDead},
		{"role mismatch", 1, RoleDoctor, ptr(9), History{}, ErrRoleMismatch},
		{"invalid role", 1, Role("WEREWOLF"), ptr(9), History{}, ErrUnknownRole},
		{"civilian acts", 9, RoleCivilian, nil, History{}, ErrUnknownRole},
		{"duplicate non-mafia", 4, RoleSheriff, ptr(9), History{HasActed: true}, ErrActionExists},
		{"unknown target", 1, RoleMafia, ptr(99), History{}, ErrTargetNotFound},
		{"dead target", 1, RoleMafia, ptr(10), History{}, ErrTargetDead},
		{"mafia skip", 1, RoleMafia, nil, History{}, ErrTargetRequired},
		{"mafia self", 1, RoleMafia, ptr(1), History{}, ErrTargetSelf},
		{"mafia ally", 1, RoleMafia, ptr(2), History{}, ErrTargetAlly},
		{"don ally", 2, RoleDon, ptr(1), History{}, ErrTargetAlly},
		{"doctor repeat", 3, RoleDoctor, ptr(9), History{PrevTargetID: ptr(9)}, ErrRepeatTarget},
		{"doctor second self-heal", 3, RoleDoctor, ptr(3), History{SelfHeals: 1}, ErrSelfHealSpent},
		{"sheriff self", 4, RoleSheriff, ptr(4), History{}, ErrTargetSelf},
		{"sheriff repeat", 4, RoleSheriff, ptr(9), History{PrevTargetID: ptr(9)}, ErrRepeatTarget},
		{"journalist repeat", 7, RoleJournalist, ptr(9), History{PrevTargetID: ptr(9)}, ErrRepeatTarget},
		{"bodyguard self", 6, RoleBodyguard, ptr(6), History{}, ErrTargetSelf},
		{"sniper second shot", 8, RoleSniper, ptr(9), History{ShotsFired: 1}, ErrSniperSpent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateNightAction(seats, tc.actor, tc.role, tc.target, tc.h)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestValidateNightActionLegal(t *testing.T) {
	seats := fullSeats()

	assert.NoError(t, ValidateNightAction(seats, 1, RoleMafia, ptr(9), History{}))
	// Mafia side may overwrite its pick within the same night.
	assert.NoError(t, ValidateNightAction(seats, 2, RoleDon, ptr(9), History{HasActed: true}))
	// Doctor may skip, heal others, and self-heal once.
	assert.NoError(t, ValidateNightAction(seats, 3, RoleDoctor, nil, History{}))
	assert.NoError(t, ValidateNightAction(seats, 3, RoleDoctor, ptr(3), History{}))
	// Non-consecutive repeat is fine: only the immediately preceding night counts.
	assert.NoError(t, ValidateNightAction(seats, 4, RoleSheriff, ptr(9), History{PrevTargetID: ptr(5)}))
	// Sniper may hold the shot indefinitely.
	assert.NoError(t, ValidateNightAction(seats, 8, RoleSniper, nil, History{ShotsFired: 1}))
	assert.NoError(t, ValidateNightAction(seats, 8, RoleSniper, ptr(9), History{}))
}

func TestNightReady(t *testing.T) {
	seats := []Seat{
		{ID: 1, Role: RoleMafia, Alive: true},
		{ID: 2, Role: RoleDoctor, Alive: true},
		{ID: 3, Role: RoleCivilian, Alive: true},
		{ID: 4, Role: RoleSheriff, Alive: false},
	}

	assert.False(t, NightReady(seats, nil))
	assert.False(t, NightReady(seats, []Action{{ActorID: 1, Role: RoleMafia, TargetID: ptr(3)}}))

	// Civilians and dead seats are not required actors.
	ready := []Action{
		{ActorID: 1, Role: RoleMafia, TargetID: ptr(3)},
		{ActorID: 2, Role: RoleDoctor, TargetID: nil},
	}
	assert.True(t, NightReady(seats, ready))
}

// --- resolution ---

func TestResolveNightDoctorSavesMafiaTarget(t *testing.T) {
	seats := []Seat{
		{ID: 1, Role: RoleMafia, Alive: true},
		{ID: 2, Role: RoleDoctor, Alive: true},
		{ID: 3, Role: RoleCivilian, Alive: true},
		{ID: 4, Role: RoleCivilian, Alive: true},
	}
	actions := []Action{
		{ActorID: 1, Role: RoleMafia, TargetID: ptr(3)},
		{ActorID: 2, Role: RoleDoctor, TargetID: ptr(3)},
	}

	out := ResolveNight(seats, actions, Rules{}, testRNG())
	require.NotNil(t, out.MafiaTarget)
	assert.Equal(t, uint(3), *out.MafiaTarget)
	assert.Empty(t, out.Deaths)
	assert.Equal(t, []uint{3}, out.Saved)
}

func TestResolveNightProstituteBlocksSheriff(t *testing.T) {
	seats := fullSeats()
	actions := []Action{
		{ActorID: 5, Role: RoleProstitute, TargetID: ptr(4)},
		{ActorID: 4, Role: RoleSheriff, TargetID: ptr(1)},
	}

	out := ResolveNight(seats, actions, Rules{SheriffSeesDon: true}, testRNG())
	assert.Equal(t, []uint{4}, out.Blocked)
	assert.Nil(t, out.Sheriff, "a blocked sheriff learns nothing")
}

func TestResolveNightProstituteBlocksMafiaVoter(t *testing.T) {
	seats := []Seat{
		{ID: 1, Role: RoleMafia, Alive: true},
		{ID: 2, Role: RoleMafia, Alive: true},
		{ID: 5, Role: RoleProstitute, Alive: true},
		{ID: 9, Role: RoleCivilian, Alive: true},
		{ID: 10, Role: RoleCivilian, Alive: true},
	}
	// Seat 1 is blocked, so seat 2 is the only elector and its pick carries.
	actions := []Action{
		{ActorID: 5, Role: RoleProstitute, TargetID: ptr(1)},
		{ActorID: 1, Role: RoleMafia, TargetID: ptr(9)},
		{ActorID: 2, Role: RoleMafia, TargetID: ptr(10)},
	}

	out := ResolveNight(seats, actions, Rules{}, testRNG())
	require.NotNil(t, out.MafiaTarget)
	assert.Equal(t, uint(10), *out.MafiaTarget)
	assert.Equal(t, []uint{10}, out.Deaths)
}

func TestResolveNightMafiaSplitNoMajority(t *testing.T) {
	seats := []Seat{
		{ID: 1, Role: RoleDon, Alive: true},
		{ID: 2, Role: RoleMafia, Alive: true},
		{ID: 3, Role: RoleMafia, Alive: true},
		{ID: 9, Role: RoleCivilian, Alive: true},
		{ID: 10, Role: RoleCivilian, Alive: true},
		{ID: 11, Role: RoleCivilian, Alive: true},
	}
	// Three electors, three different targets: no pick reaches 2 votes.
	actions := []Action{
		{ActorID: 1, Role: RoleDon, TargetID: ptr(9)},
		{ActorID: 2, Role: RoleMafia, TargetID: ptr(10)},
		{ActorID: 3, Role: RoleMafia, TargetID: ptr(11)},
	}

	out := ResolveNight(seats, actions, Rules{}, testRNG())
	assert.Nil(t, out.MafiaTarget)
	assert.Empty(t, out.Deaths)
}

func TestResolveNightBodyguardRedirect(t *testing.T) {
	seats := fullSeats()
	actions := []Action{
		{ActorID: 1, Role: RoleMafia, TargetID: ptr(9)},
		{ActorID: 2, Role: RoleDon, TargetID: ptr(9)},
		{ActorID: 6, Role: RoleBodyguard, TargetID: ptr(9)},
	}

	out := ResolveNight(seats, actions, Rules{}, testRNG())
	require.NotNil(t, out.Guarded)
	assert.Equal(t, uint(9), *out.Guarded)
	assert.Equal(t, []uint{6}, out.Deaths, "bodyguard dies in the target's place")
}

func TestResolveNightBodyguardRedirectThenHeal(t *testing.T) {
	seats := fullSeats()
	actions := []Action{
		{ActorID: 1, Role: RoleMafia, TargetID: ptr(9)},
		{ActorID: 2, Role: RoleDon, TargetID: ptr(9)},
		{ActorID: 6, Role: RoleBodyguard, TargetID: ptr(9)},
		{ActorID: 3, Role: RoleDoctor, TargetID: ptr(6)},
	}

	out := ResolveNight(seats, actions, Rules{}, testRNG())
	assert.Empty(t, out.Deaths, "doctor on the bodyguard cancels the redirected kill")
	assert.Equal(t, []uint{6}, out.Saved)
}

func TestResolveNightTwoKillsOneVictimDiesOnce(t *testing.T) {
	seats := fullSeats()
	actions := []Action{
		{ActorID: 1, Role: RoleMafia, TargetID: ptr(9)},
		{ActorID: 2, Role: RoleDon, TargetID: ptr(9)},
		{ActorID: 8, Role: RoleSniper, TargetID: ptr(9)},
	}

	out := ResolveNight(seats, actions, Rules{}, testRNG())
	assert.Equal(t, []uint{9}, out.Deaths)
}

func TestResolveNightSniperIndependentKill(t *testing.T) {
	seats := fullSeats()
	actions := []Action{
		{ActorID: 1, Role: RoleMafia, TargetID: ptr(9)},
		{ActorID: 2, Role: RoleDon, TargetID: ptr(9)},
		{ActorID: 8, Role: RoleSniper, TargetID: ptr(1)},
	}

	out := ResolveNight(seats, actions, Rules{}, testRNG())
	assert.Equal(t, []uint{1, 9}, out.Deaths)
}

func TestResolveNightSheriffSeesDonRule(t *testing.T) {
	seats := fullSeats()
	actions := []Action{
		{ActorID: 4, Role: RoleSheriff, TargetID: ptr(2)},
	}

	out := ResolveNight(seats, actions, Rules{SheriffSeesDon: true}, testRNG())
	require.NotNil(t, out.Sheriff)
	assert.True(t, out.Sheriff.MafiaSide)

	out = ResolveNight(seats, actions, Rules{SheriffSeesDon: false}, testRNG())
	require.NotNil(t, out.Sheriff)
	assert.False(t, out.Sheriff.MafiaSide, "with the rule off the DON reads as clean")
}

func TestResolveNightJournalistAlwaysSeesDon(t *testing.T) {
	seats := fullSeats()
	actions := []Action{
		{ActorID: 7, Role: RoleJournalist, TargetID: ptr(2)},
	}

	out := ResolveNight(seats, actions, Rules{SheriffSeesDon: false}, testRNG())
	require.NotNil(t, out.Journalist)
	assert.True(t, out.Journalist.MafiaSide)
	assert.Equal(t, uint(7), out.Journalist.SeatID)
	assert.Equal(t, uint(2), out.Journalist.TargetID)
}

// At most one seat can die per kill source regardless of how the guard
// and heal interleave.
func TestResolveNightDeathCountBound(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 200; i++ {
		seats := fullSeats()
		randomTarget := func() *uint {
			return ptr(seats[rng.Intn(len(seats))].ID)
		}
		actions := []Action{
			{ActorID: 1, Role: RoleMafia, TargetID: ptr(uint(9))},
			{ActorID: 2, Role: RoleDon, TargetID: ptr(uint(9))},
			{ActorID: 3, Role: RoleDoctor, TargetID: randomTarget()},
			{ActorID: 6, Role: RoleBodyguard, TargetID: randomTarget()},
			{ActorID: 8, Role: RoleSniper, TargetID: randomTarget()},
		}
		out := ResolveNight(seats, actions, Rules{}, rng)
		assert.LessOrEqual(t, len(out.Deaths), 2, "iteration %d", i)

		seen := map[uint]bool{}
		for _, id := range out.Deaths {
			assert.False(t, seen[id], "duplicate death %d in iteration %d", id, i)
			seen[id] = true
		}
	}
}
