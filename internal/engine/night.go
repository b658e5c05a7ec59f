package engine

import (
	"math/rand"
	"sort"
)

// Seat is a point-in-time snapshot of one player row. The engine never
// touches storage; the orchestrator loads seats and actions inside its
// transaction and feeds them in.
type Seat struct {
	ID    uint
	Role  Role
	Alive bool
}

// Action is a snapshot of one NightAction row. A nil TargetID is a skip.
type Action struct {
	ActorID  uint
	Role     Role
	TargetID *uint
}

// Rules holds the deployment-configurable toggles that change resolution
// semantics. They are plain data so tests can exercise every setting.
type Rules struct {
	// SheriffSeesDon controls whether the sheriff's check reports the DON
	// as mafia. The journalist always sees the full mafia side.
	SheriffSeesDon bool
}

// History carries the per-actor match history validation needs. The
// orchestrator recomputes it from persisted rows on every submission
// rather than caching counters.
type History struct {
	// HasActed is true when the actor already has an action row for the
	// night being submitted.
	HasActed bool
	// PrevTargetID is the actor's target on the immediately preceding
	// night, nil if the actor skipped or did not act.
	PrevTargetID *uint
	// SelfHeals counts the doctor's prior self-heals this match.
	SelfHeals int
	// ShotsFired counts the sniper's prior non-skip shots this match.
	ShotsFired int
}

func findSeat(seats []Seat, id uint) *Seat {
	for i := range seats {
		if seats[i].ID == id {
			return &seats[i]
		}
	}
	return nil
}

// ValidateNightAction checks a single submission against the live seat
// snapshot and the actor's history. It returns nil when the action is
// legal; the returned errors are the synchronous rejection taxonomy.
func ValidateNightAction(seats []Seat, actorID uint, role Role, targetID *uint, h History) error {
	actor := findSeat(seats, actorID)
	if actor == nil {
		return ErrActorNotFound
	}
	if !actor.Alive {
		return ErrActorDead
	}
	if !role.Valid() {
		return ErrUnknownRole
	}
	if actor.Role != role {
		return ErrRoleMismatch
	}
	if h.HasActed && !role.CanRetarget() {
		return ErrActionExists
	}

	var target *Seat
	if targetID != nil {
		target = findSeat(seats, *targetID)
		if target == nil {
			return ErrTargetNotFound
		}
		if !target.Alive {
			return ErrTargetDead
		}
	}

	switch role {
	case RoleMafia, RoleDon:
		if target == nil {
			return ErrTargetRequired
		}
		if target.ID == actorID {
			return ErrTargetSelf
		}
		if target.Role.MafiaSide() {
			return ErrTargetAlly
		}
	case RoleDoctor:
		if target == nil {
			return nil
		}
		if h.PrevTargetID != nil && *h.PrevTargetID == target.ID {
			return ErrRepeatTarget
		}
		if target.ID == actorID && h.SelfHeals > 0 {
			return ErrSelfHealSpent
		}
	case RoleSheriff, RoleProstitute, RoleJournalist:
		if target == nil {
			return nil
		}
		if target.ID == actorID {
			return ErrTargetSelf
		}
		if h.PrevTargetID != nil && *h.PrevTargetID == target.ID {
			return ErrRepeatTarget
		}
	case RoleBodyguard:
		if target == nil {
			return nil
		}
		if target.ID == actorID {
			return ErrTargetSelf
		}
	case RoleSniper:
		if target == nil {
			return nil
		}
		if target.ID == actorID {
			return ErrTargetSelf
		}
		if h.ShotsFired > 0 {
			return ErrSniperSpent
		}
	case RoleCivilian:
		return ErrUnknownRole
	}
	return nil
}

// NightReady reports whether every alive required night actor has an
// action row for the current night. Recomputed from persisted state on
// every call; deliberately never cached.
func NightReady(seats []Seat, actions []Action) bool {
	acted := make(map[uint]bool, len(actions))
	for _, a := range actions {
		acted[a.ActorID] = true
	}
	for _, s := range seats {
		if s.Alive && s.Role.ActsAtNight() && !acted[s.ID] {
			return false
		}
	}
	return true
}

// Reveal is a role-insight result delivered privately to one seat.
type Reveal struct {
	SeatID    uint // the investigator
	TargetID  uint
	MafiaSide bool
}

// NightOutcome is the computed result of one night. Deaths are distinct
// seat ids; a seat targeted by both kill sources dies exactly once.
type NightOutcome struct {
	Blocked     []uint // seats whose submitted actions were discarded
	MafiaTarget *uint  // mafia kill choice before redirects, nil when no majority
	Deaths      []uint
	Saved       []uint // kill victims canceled by the doctor
	Guarded     *uint  // the original victim whose kill the bodyguard took
	Sheriff     *Reveal
	Journalist  *Reveal
}

// ResolveNight computes the night outcome from the seat and action
// snapshots. It is pure: the only nondeterminism is the rng used to
// break mafia-vote ties.
func ResolveNight(seats []Seat, actions []Action, rules Rules, rng *rand.Rand) NightOutcome {
	var out NightOutcome

	byRole := func(role Role) *Action {
		for i := range actions {
			a := &actions[i]
			if a.Role == role {
				if s := findSeat(seats, a.ActorID); s != nil && s.Alive {
					return a
				}
			}
		}
		return nil
	}

	// A seat is blocked when the prostitute targeted it; its submitted
	// action is discarded from resolution but the row stays for audit.
	blocked := make(map[uint]bool)
	if p := byRole(RoleProstitute); p != nil && p.TargetID != nil {
		blocked[*p.TargetID] = true
		out.Blocked = append(out.Blocked, *p.TargetID)
	}
	effective := func(a *Action) bool {
		return a != nil && !blocked[a.ActorID]
	}

	// Mafia kill selection: strict majority of non-blocked mafia actors,
	// uniform random pick among tied leaders.
	votes := make(map[uint]int)
	for i := range actions {
		a := &actions[i]
		if !a.Role.MafiaSide() || a.TargetID == nil {
			continue
		}
		if s := findSeat(seats, a.ActorID); s == nil || !s.Alive || blocked[a.ActorID] {
			continue
		}
		votes[*a.TargetID]++
	}
	electors := 0
	for _, s := range seats {
		if s.Alive && s.Role.MafiaSide() && !blocked[s.ID] {
			electors++
		}
	}
	if len(votes) > 0 && electors > 0 {
		max := 0
		for _, n := range votes {
			if n > max {
				max = n
			}
		}
		var leaders []uint
		for id, n := range votes {
			if n == max {
				leaders = append(leaders, id)
			}
		}
		sort.Slice(leaders, func(i, j int) bool { return leaders[i] < leaders[j] })
		pick := leaders[rng.Intn(len(leaders))]
		if max >= electors/2+1 {
			out.MafiaTarget = &pick
		}
	}

	// Kill sources are evaluated independently; both may fire the same
	// night. Order per victim: bodyguard redirect, then doctor cancel.
	var kills []uint
	if out.MafiaTarget != nil {
		kills = append(kills, *out.MafiaTarget)
	}
	if sn := byRole(RoleSniper); effective(sn) && sn.TargetID != nil {
		kills = append(kills, *sn.TargetID)
	}

	var guardTarget *uint
	var guardSeat uint
	if bg := byRole(RoleBodyguard); effective(bg) && bg.TargetID != nil {
		guardTarget = bg.TargetID
		guardSeat = bg.ActorID
	}
	var healTarget *uint
	if doc := byRole(RoleDoctor); effective(doc) && doc.TargetID != nil {
		healTarget = doc.TargetID
	}

	dead := make(map[uint]bool)
	saved := make(map[uint]bool)
	for _, victim := range kills {
		if guardTarget != nil && *guardTarget == victim {
			if out.Guarded == nil {
				v := victim
				out.Guarded = &v
			}
			victim = guardSeat
		}
		if healTarget != nil && *healTarget == victim {
			saved[victim] = true
			continue
		}
		dead[victim] = true
	}
	for id := range dead {
		out.Deaths = append(out.Deaths, id)
	}
	for id := range saved {
		out.Saved = append(out.Saved, id)
	}
	sort.Slice(out.Deaths, func(i, j int) bool { return out.Deaths[i] < out.Deaths[j] })
	sort.Slice(out.Saved, func(i, j int) bool { return out.Saved[i] < out.Saved[j] })

	// Investigations are unaffected by kill resolution but suppressed
	// when the investigator itself was blocked.
	if sh := byRole(RoleSheriff); effective(sh) && sh.TargetID != nil {
		if t := findSeat(seats, *sh.TargetID); t != nil {
			mafia := t.Role == RoleMafia || (t.Role == RoleDon && rules.SheriffSeesDon)
			out.Sheriff = &Reveal{SeatID: sh.ActorID, TargetID: t.ID, MafiaSide: mafia}
		}
	}
	if j := byRole(RoleJournalist); effective(j) && j.TargetID != nil {
		if t := findSeat(seats, *j.TargetID); t != nil {
			out.Journalist = &Reveal{SeatID: j.ActorID, TargetID: t.ID, MafiaSide: t.Role.MafiaSide()}
		}
	}

	return out
}
