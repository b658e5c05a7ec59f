package engine

import (
	"fmt"
	"math/rand"
)

// Role is the closed set of seat roles. Every switch over Role in this
// package lists each member explicitly so a new role fails to compile
// until every decision point handles it.
type Role string

const (
	RoleCivilian   Role = "CIVILIAN"
	RoleMafia      Role = "MAFIA"
	RoleDon        Role = "DON"
	RoleDoctor     Role = "DOCTOR"
	RoleSheriff    Role = "SHERIFF"
	RoleJournalist Role = "JOURNALIST"
	RoleBodyguard  Role = "BODYGUARD"
	RoleProstitute Role = "PROSTITUTE"
	RoleSniper     Role = "SNIPER"
)

// AllRoles lists every playable role.
var AllRoles = []Role{
	RoleCivilian, RoleMafia, RoleDon, RoleDoctor, RoleSheriff,
	RoleJournalist, RoleBodyguard, RoleProstitute, RoleSniper,
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleCivilian, RoleMafia, RoleDon, RoleDoctor, RoleSheriff,
		RoleJournalist, RoleBodyguard, RoleProstitute, RoleSniper:
		return true
	}
	return false
}

// MafiaSide reports whether the role wins with the mafia.
func (r Role) MafiaSide() bool {
	return r == RoleMafia || r == RoleDon
}

// ActsAtNight reports whether the role is a required night actor.
func (r Role) ActsAtNight() bool {
	return r != RoleCivilian
}

// CanRetarget reports whether the role may overwrite a night action it
// already submitted this night. Only the mafia side may change its mind.
func (r Role) CanRetarget() bool {
	return r.MafiaSide()
}

// compositions maps seat count to the fixed role multiset dealt at game
// start. Counts without an entry cannot start a game.
var compositions = map[int][]Role{
	4:  {RoleMafia, RoleDoctor, RoleCivilian, RoleCivilian},
	5:  {RoleMafia, RoleDoctor, RoleSheriff, RoleCivilian, RoleCivilian},
	6:  {RoleDon, RoleMafia, RoleDoctor, RoleSheriff, RoleCivilian, RoleCivilian},
	7:  {RoleDon, RoleMafia, RoleDoctor, RoleSheriff, RoleProstitute, RoleCivilian, RoleCivilian},
	8:  {RoleDon, RoleMafia, RoleDoctor, RoleSheriff, RoleProstitute, RoleJournalist, RoleCivilian, RoleCivilian},
	9:  {RoleDon, RoleMafia, RoleMafia, RoleDoctor, RoleSheriff, RoleProstitute, RoleBodyguard, RoleCivilian, RoleCivilian},
	10: {RoleDon, RoleMafia, RoleMafia, RoleDoctor, RoleSheriff, RoleProstitute, RoleBodyguard, RoleJournalist, RoleCivilian, RoleCivilian},
	11: {RoleDon, RoleMafia, RoleMafia, RoleDoctor, RoleSheriff, RoleProstitute, RoleBodyguard, RoleJournalist, RoleSniper, RoleCivilian},
	12: {RoleDon, RoleMafia, RoleMafia, RoleMafia, RoleDoctor, RoleSheriff, RoleProstitute, RoleBodyguard, RoleJournalist, RoleSniper, RoleCivilian, RoleCivilian},
}

// Composition returns a copy of the role multiset for the given seat
// count, or an error when no table is defined for it.
func Composition(seatCount int) ([]Role, error) {
	roles, ok := compositions[seatCount]
	if !ok {
		return nil, fmt.Errorf("%w: %d players", ErrNoComposition, seatCount)
	}
	out := make([]Role, len(roles))
	copy(out, roles)
	return out, nil
}

// AssignRoles deals the composition for len(seatIDs) seats as a uniform
// random bijection: seat ids and the role multiset are shuffled
// independently and paired index-wise, so no role is biased toward any
// seat position.
func AssignRoles(seatIDs []uint, rng *rand.Rand) (map[uint]Role, error) {
	roles, err := Composition(len(seatIDs))
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(seatIDs))
	copy(ids, seatIDs)
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	rng.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })

	assigned := make(map[uint]Role, len(ids))
	for i, id := range ids {
		assigned[id] = roles[i]
	}
	return assigned, nil
}
