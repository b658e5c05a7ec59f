package engine

// Winners. The string values match the Match.Winner column.
const (
	WinMafia = "MAFIA"
	WinCivil = "CIVIL"
)

// Winner returns the winning side, or nil while the match is undecided.
// Mafia parity (mafia count reaching the non-mafia count) ends the match
// because the town can no longer win a vote.
func Winner(seats []Seat) *string {
	mafia, town := 0, 0
	for _, s := range seats {
		if !s.Alive {
			continue
		}
		if s.Role.MafiaSide() {
			mafia++
		} else {
			town++
		}
	}
	if mafia == 0 {
		w := WinCivil
		return &w
	}
	if mafia >= town {
		w := WinMafia
		return &w
	}
	return nil
}
