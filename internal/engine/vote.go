package engine

import "sort"

// SkipVote is the target value encoding "lynch nobody".
const SkipVote uint = 0

// Ballot is a snapshot of one Vote row.
type Ballot struct {
	VoterID  uint
	TargetID uint // SkipVote for skip
}

// ValidateVote checks one ballot against the seat snapshot and, during a
// runoff, the carried-over candidate set (which may include SkipVote).
func ValidateVote(seats []Seat, voterID, targetID uint, runoff []uint) error {
	voter := findSeat(seats, voterID)
	if voter == nil {
		return ErrVoterNotFound
	}
	if !voter.Alive {
		return ErrVoterDead
	}
	if targetID != SkipVote {
		target := findSeat(seats, targetID)
		if target == nil {
			return ErrTargetNotFound
		}
		if !target.Alive {
			return ErrTargetDead
		}
	}
	if len(runoff) > 0 {
		for _, c := range runoff {
			if c == targetID {
				return nil
			}
		}
		return ErrRunoffTarget
	}
	return nil
}

// VoteReady reports whether every alive seat has a ballot in.
func VoteReady(seats []Seat, ballots []Ballot) bool {
	voted := make(map[uint]bool, len(ballots))
	for _, b := range ballots {
		voted[b.VoterID] = true
	}
	for _, s := range seats {
		if s.Alive && !voted[s.ID] {
			return false
		}
	}
	return true
}

// VoteOutcome is the computed result of one vote round.
type VoteOutcome struct {
	// Lynched is the seat to eliminate; nil when skip won, nobody voted,
	// or the round tied.
	Lynched *uint
	// Runoff holds the tied leader values (possibly including SkipVote)
	// when a round-1 tie opens a second round.
	Runoff []uint
	// Tie is set when a round-2 tally tied; that is treated as no lynch.
	Tie bool
}

// TallyVotes resolves one round of ballots. Skip competes as a candidate
// value: a unique maximum on SkipVote means nobody is lynched, and a tie
// that includes skip carries skip into the runoff.
func TallyVotes(ballots []Ballot, round int) VoteOutcome {
	var out VoteOutcome
	if len(ballots) == 0 {
		return out
	}

	counts := make(map[uint]int)
	for _, b := range ballots {
		counts[b.TargetID]++
	}
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	var leaders []uint
	for v, n := range counts {
		if n == max {
			leaders = append(leaders, v)
		}
	}
	sort.Slice(leaders, func(i, j int) bool { return leaders[i] < leaders[j] })

	if len(leaders) == 1 {
		if leaders[0] != SkipVote {
			v := leaders[0]
			out.Lynched = &v
		}
		return out
	}
	if round == 1 {
		out.Runoff = leaders
		return out
	}
	// A second-round tie lynches nobody rather than opening a third round.
	out.Tie = true
	return out
}
