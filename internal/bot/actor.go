package bot

import (
	"errors"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mafia/backend/internal/database"
	"mafia/backend/internal/engine"
	"mafia/backend/internal/game"
	"mafia/backend/internal/models"
)

// sniperHoldChance is the probability a sniper bot keeps its one shot
// for a later night.
const sniperHoldChance = 0.7

// Actor fills in actions for automated seats. Every submission goes
// through the orchestrator's normal validation; a rejected pick degrades
// to a skip instead of stalling the phase.
type Actor struct {
	// Grace is how long a plain mafia bot waits for the DON to commit a
	// target before acting independently.
	Grace time.Duration
}

// New creates a bot actor.
func New(grace time.Duration) *Actor {
	return &Actor{Grace: grace}
}

// PlayNight submits a legal random night action for every alive bot
// seat in the room. Plain mafia bots defer briefly so they can pile onto
// the DON's target.
func (a *Actor) PlayNight(roomID uint) {
	room, players, ok := a.load(roomID, models.RoomNight)
	if !ok {
		return
	}
	night := room.NightNumber()

	for _, p := range players {
		if !p.IsBot || !p.Alive {
			continue
		}
		role := engine.Role(p.Role)
		if !role.ActsAtNight() {
			continue
		}
		if role == engine.RoleMafia && hasAliveDon(players) {
			seat := p
			time.AfterFunc(a.Grace, func() { a.mafiaFollowUp(roomID, seat.ID, night) })
			continue
		}
		a.actNight(room, players, p)
	}
}

// mafiaFollowUp runs after the grace window: pile onto the DON's target
// when one exists, otherwise pick independently.
func (a *Actor) mafiaFollowUp(roomID, playerID uint, night int) {
	room, players, ok := a.load(roomID, models.RoomNight)
	if !ok || room.NightNumber() != night {
		return
	}
	var seat *models.Player
	for i := range players {
		if players[i].ID == playerID {
			seat = &players[i]
		}
	}
	if seat == nil || !seat.Alive {
		return
	}

	if target := donTarget(room, players); target != nil {
		err := game.SubmitBotNightAction(roomID, playerID, seat.Role, target)
		if err == nil {
			return
		}
		logrus.WithError(err).WithFields(logrus.Fields{"room": roomID, "bot": playerID}).
			Debug("bot could not follow don, acting independently")
	}
	a.actNight(room, players, *seat)
}

func donTarget(room *models.Room, players []models.Player) *uint {
	match, err := game.ActiveMatch(room.ID)
	if err != nil {
		return nil
	}
	var don *models.Player
	for i := range players {
		if players[i].Alive && engine.Role(players[i].Role) == engine.RoleDon {
			don = &players[i]
		}
	}
	if don == nil {
		return nil
	}
	var action models.NightAction
	err = database.DB.Where("match_id = ? AND night_number = ? AND actor_player_id = ?",
		match.ID, room.NightNumber(), don.ID).First(&action).Error
	if err != nil {
		return nil
	}
	return action.TargetPlayerID
}

// actNight picks a random legal-looking target for the seat's role and
// submits it, degrading to a skip on rejection.
func (a *Actor) actNight(room *models.Room, players []models.Player, seat models.Player) {
	role := engine.Role(seat.Role)
	candidates := nightCandidates(players, seat, role)

	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	skippable := !role.MafiaSide()
	if role == engine.RoleSniper && rand.Float64() < sniperHoldChance {
		candidates = nil
	}

	for _, target := range candidates {
		t := target
		if err := game.SubmitBotNightAction(room.ID, seat.ID, seat.Role, &t); err == nil {
			return
		}
	}
	if skippable {
		if err := game.SubmitBotNightAction(room.ID, seat.ID, seat.Role, nil); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"room": room.ID, "bot": seat.ID}).
				Warn("bot skip rejected")
		}
	}
}

// nightCandidates builds the uniform pick pool per role. Looser than
// full validation on purpose: the orchestrator's validation is the
// authority and rejected picks fall through to the next candidate.
func nightCandidates(players []models.Player, seat models.Player, role engine.Role) []uint {
	var out []uint
	for _, p := range players {
		if !p.Alive {
			continue
		}
		switch role {
		case engine.RoleMafia, engine.RoleDon:
			if p.ID != seat.ID && !engine.Role(p.Role).MafiaSide() {
				out = append(out, p.ID)
			}
		case engine.RoleDoctor:
			out = append(out, p.ID)
		case engine.RoleSheriff, engine.RoleJournalist, engine.RoleBodyguard,
			engine.RoleProstitute, engine.RoleSniper:
			if p.ID != seat.ID {
				out = append(out, p.ID)
			}
		case engine.RoleCivilian:
		}
	}
	return out
}

// PlayVote submits a ballot for every alive bot seat. During a runoff
// the pick pool is exactly the carried-over candidates.
func (a *Actor) PlayVote(roomID uint) {
	room, players, ok := a.load(roomID, models.RoomVote)
	if !ok {
		return
	}

	match, err := game.ActiveMatch(roomID)
	if err != nil {
		return
	}
	_, leaders, err := game.CurrentRound(match.ID, room.DayNumber)
	if err != nil {
		return
	}

	for _, p := range players {
		if !p.IsBot || !p.Alive {
			continue
		}
		pool := voteCandidates(players, p, leaders)
		if len(pool) == 0 {
			continue
		}
		choice := pool[rand.Intn(len(pool))]
		if err := game.SubmitBotVote(roomID, p.ID, choice); err != nil {
			// Revotes and already-resolved rounds land here; both are fine.
			if !errors.Is(err, game.ErrWrongPhase) {
				logrus.WithError(err).WithFields(logrus.Fields{"room": roomID, "bot": p.ID}).
					Debug("bot vote rejected, skipping")
				_ = game.SubmitBotVote(roomID, p.ID, engine.SkipVote)
			}
		}
	}
}

func voteCandidates(players []models.Player, voter models.Player, leaders []uint) []uint {
	if len(leaders) > 0 {
		pool := make([]uint, len(leaders))
		copy(pool, leaders)
		return pool
	}
	pool := []uint{engine.SkipVote}
	for _, p := range players {
		if p.Alive && p.ID != voter.ID {
			pool = append(pool, p.ID)
		}
	}
	return pool
}

func (a *Actor) load(roomID uint, wantStatus string) (*models.Room, []models.Player, bool) {
	var room models.Room
	if err := database.DB.First(&room, roomID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).WithField("room", roomID).Warn("bot room load failed")
		}
		return nil, nil, false
	}
	if room.Status != wantStatus {
		return nil, nil, false
	}
	var players []models.Player
	if err := database.DB.Where("room_id = ?", roomID).Order("id").Find(&players).Error; err != nil {
		return nil, nil, false
	}
	return &room, players, true
}

func hasAliveDon(players []models.Player) bool {
	for _, p := range players {
		if p.Alive && engine.Role(p.Role) == engine.RoleDon {
			return true
		}
	}
	return false
}
