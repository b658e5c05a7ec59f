package engine

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositionUnknownCount(t *testing.T) {
	_, err := Composition(3)
	assert.ErrorIs(t, err, ErrNoComposition)

	_, err = Composition(13)
	assert.ErrorIs(t, err, ErrNoComposition)
}

func TestCompositionCounts(t *testing.T) {
	for n := 4; n <= 12; n++ {
		roles, err := Composition(n)
		require.NoError(t, err, "composition for %d players", n)
		assert.Len(t, roles, n)

		mafia := 0
		for _, r := range roles {
			assert.True(t, r.Valid(), "role %q in %d-player composition", r, n)
			if r.MafiaSide() {
				mafia++
			}
		}
		// Town must start with a strict majority or the game ends on deal.
		assert.Less(t, mafia, n-mafia, "%d players: %d mafia", n, mafia)
	}
}

func TestCompositionReturnsCopy(t *testing.T) {
	a, err := Composition(6)
	require.NoError(t, err)
	a[0] = RoleCivilian

	b, err := Composition(6)
	require.NoError(t, err)
	assert.Equal(t, RoleDon, b[0])
}

func TestAssignRolesBijection(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids := []uint{10, 20, 30, 40, 50, 60, 70}

	assigned, err := AssignRoles(ids, rng)
	require.NoError(t, err)
	require.Len(t, assigned, len(ids))

	want, err := Composition(len(ids))
	require.NoError(t, err)

	var got []Role
	for _, id := range ids {
		role, ok := assigned[id]
		require.True(t, ok, "seat %d got no role", id)
		got = append(got, role)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	assert.Equal(t, want, got, "assigned roles must be exactly the composition multiset")
}

func TestAssignRolesUnknownCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := AssignRoles([]uint{1, 2, 3}, rng)
	assert.ErrorIs(t, err, ErrNoComposition)
}

// Every seat should see every role across enough seeded deals. This
// catches accidental positional bias in the shuffle pairing.
func TestAssignRolesNoPositionalBias(t *testing.T) {
	ids := []uint{1, 2, 3, 4}
	seen := map[uint]map[Role]bool{}
	for _, id := range ids {
		seen[id] = map[Role]bool{}
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		assigned, err := AssignRoles(ids, rng)
		require.NoError(t, err)
		for id, role := range assigned {
			seen[id][role] = true
		}
	}

	distinct, err := Composition(len(ids))
	require.NoError(t, err)
	kinds := map[Role]bool{}
	for _, r := range distinct {
		kinds[r] = true
	}
	for _, id := range ids {
		assert.Len(t, seen[id], len(kinds), "seat %d never drew some role", id)
	}
}

func TestRolePredicates(t *testing.T) {
	assert.True(t, RoleMafia.MafiaSide())
	assert.True(t, RoleDon.MafiaSide())
	assert.False(t, RoleSheriff.MafiaSide())

	assert.False(t, RoleCivilian.ActsAtNight())
	for _, r := range AllRoles {
		if r != RoleCivilian {
			assert.True(t, r.ActsAtNight(), "%s", r)
		}
	}

	assert.True(t, RoleMafia.CanRetarget())
	assert.True(t, RoleDon.CanRetarget())
	assert.False(t, RoleDoctor.CanRetarget())

	assert.False(t, Role("WEREWOLF").Valid())
}
