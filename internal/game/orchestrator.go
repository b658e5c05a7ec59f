package game

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mafia/backend/internal/config"
	"mafia/backend/internal/database"
	"mafia/backend/internal/engine"
	"mafia/backend/internal/hub"
	"mafia/backend/internal/models"
)

// lockTTL bounds how long a crashed holder can stall a room's resolution.
const lockTTL = 10 * time.Second

// Orchestrator-level rejections surfaced synchronously to callers.
var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotSeated     = errors.New("you are not seated in this room")
	ErrWrongPhase    = errors.New("action not allowed in the current phase")
	ErrNotOwner      = errors.New("only the room owner can do this")
	ErrTooFewPlayers = errors.New("at least 4 players are required to start")
	ErrNoActiveMatch = errors.New("no active match for this room")
)

// PhaseTimer is the scheduler surface the orchestrator drives. Cancel is
// advisory: a timer that fires anyway re-enters through OnPhaseTimeout
// and no-ops against the current phase.
type PhaseTimer interface {
	Schedule(roomID uint, at time.Time)
	Cancel(roomID uint)
}

// BotActor fills in actions for automated seats after a phase opens.
type BotActor interface {
	PlayNight(roomID uint)
	PlayVote(roomID uint)
}

var (
	locker  roomLocker
	timers  PhaseTimer
	bots    BotActor
	appCfg  *config.Config
	eventsH = hub.GlobalHub

	// In-process re-entrancy guard: a timer firing concurrently with an
	// early-resolution trigger must not both enter resolution.
	resolveMu sync.Mutex
	resolving = map[uint]bool{}
)

// roomLocker matches lock.Locker without importing it, so tests can drop
// in a stub.
type roomLocker interface {
	Acquire(ctx context.Context, roomID uint, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, roomID uint, token string) error
}

// Setup wires the orchestrator's collaborators. Called once from main
// before any traffic is served.
func Setup(l roomLocker, t PhaseTimer, b BotActor, c *config.Config) {
	locker = l
	timers = t
	bots = b
	appCfg = c
}

func rules() engine.Rules {
	return engine.Rules{SheriffSeesDon: appCfg.SheriffSeesDon}
}

func beginResolve(roomID uint) bool {
	resolveMu.Lock()
	defer resolveMu.Unlock()
	if resolving[roomID] {
		return false
	}
	resolving[roomID] = true
	return true
}

func endResolve(roomID uint) {
	resolveMu.Lock()
	delete(resolving, roomID)
	resolveMu.Unlock()
}

// withGuard runs fn under both exclusion layers: the in-process
// re-entrancy flag and the (possibly distributed) room lock. Contention
// on either layer means someone else is resolving this room; the caller
// returns without side effects and without error.
func withGuard(roomID uint, fn func()) {
	if !beginResolve(roomID) {
		return
	}
	defer endResolve(roomID)

	token, ok, err := locker.Acquire(context.Background(), roomID, lockTTL)
	if err != nil {
		logrus.WithError(err).WithField("room", roomID).Warn("lock acquire failed, will retry on next tick")
		return
	}
	if !ok {
		logrus.WithField("room", roomID).Debug("room locked elsewhere, skipping")
		return
	}
	defer locker.Release(context.Background(), roomID, token)

	fn()
}

// ActiveMatch returns the room's in-progress match.
func ActiveMatch(roomID uint) (*models.Match, error) {
	return activeMatch(database.DB, roomID)
}

// CurrentRound reports the vote round in progress for the given day and
// the runoff candidates when round 2 is active.
func CurrentRound(matchID uint, day int) (int, []uint, error) {
	return currentRound(database.DB, matchID, day)
}

// activeMatch returns the room's unfinished match.
func activeMatch(tx *gorm.DB, roomID uint) (*models.Match, error) {
	var match models.Match
	err := tx.Where("room_id = ? AND ended_at IS NULL", roomID).
		Order("id DESC").First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveMatch
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func loadPlayers(tx *gorm.DB, roomID uint) ([]models.Player, []engine.Seat, error) {
	var players []models.Player
	if err := tx.Where("room_id = ?", roomID).Order("id").Find(&players).Error; err != nil {
		return nil, nil, err
	}
	seats := make([]engine.Seat, 0, len(players))
	for _, p := range players {
		seats = append(seats, engine.Seat{ID: p.ID, Role: engine.Role(p.Role), Alive: p.Alive})
	}
	return players, seats, nil
}

func toEngineActions(rows []models.NightAction) []engine.Action {
	actions := make([]engine.Action, 0, len(rows))
	for _, r := range rows {
		actions = append(actions, engine.Action{
			ActorID:  r.ActorPlayerID,
			Role:     engine.Role(r.Role),
			TargetID: r.TargetPlayerID,
		})
	}
	return actions
}

func toEngineBallots(rows []models.Vote) []engine.Ballot {
	ballots := make([]engine.Ballot, 0, len(rows))
	for _, v := range rows {
		ballots = append(ballots, engine.Ballot{VoterID: v.VoterID, TargetID: v.TargetPlayerID})
	}
	return ballots
}

func appendEvent(tx *gorm.DB, matchID uint, phase string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&models.Event{MatchID: matchID, Phase: phase, Payload: string(raw)}).Error
}

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// StartGame moves a lobby into the first night: assigns roles as a
// uniform random bijection over the fixed composition for the seat
// count, opens the match, and arms the night timer. Runs under the room
// guard; contention means another transition for this room is already
// in flight, which the caller sees as an out-of-phase rejection.
func StartGame(roomID, callerUserID uint) error {
	err := ErrWrongPhase
	withGuard(roomID, func() { err = startGameLocked(roomID, callerUserID) })
	return err
}

func startGameLocked(roomID, callerUserID uint) error {
	tx := database.DB.Begin()

	var room models.Room
	if err := tx.First(&room, roomID).Error; err != nil {
		tx.Rollback()
		return ErrRoomNotFound
	}
	if room.Status != models.RoomLobby {
		tx.Rollback()
		return ErrWrongPhase
	}
	if room.OwnerID != callerUserID {
		tx.Rollback()
		return ErrNotOwner
	}

	players, _, err := loadPlayers(tx, roomID)
	if err != nil {
		tx.Rollback()
		return err
	}
	if len(players) < 4 {
		tx.Rollback()
		return ErrTooFewPlayers
	}

	ids := make([]uint, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	assigned, err := engine.AssignRoles(ids, newRNG())
	if err != nil {
		tx.Rollback()
		return err
	}
	for i := range players {
		p := &players[i]
		updates := map[string]interface{}{
			"role":  string(assigned[p.ID]),
			"alive": true,
		}
		if err := tx.Model(p).Updates(updates).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	match := models.Match{RoomID: roomID}
	if err := tx.Create(&match).Error; err != nil {
		tx.Rollback()
		return err
	}

	// The transition is conditional on the status read above so that a
	// racing start on another instance commits at most one of them.
	deadline := time.Now().Add(appCfg.NightDuration())
	res := tx.Model(&models.Room{}).
		Where("id = ? AND status = ?", roomID, models.RoomLobby).
		Updates(map[string]interface{}{"status": models.RoomNight, "phase_ends_at": &deadline})
	if res.Error != nil {
		tx.Rollback()
		return res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return ErrWrongPhase
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"room": room.ID, "players": len(players)}).
		Info("game started, night 1 open")

	timers.Schedule(room.ID, deadline)
	emitState(room.ID)
	for _, p := range players {
		if p.IsBot {
			continue
		}
		eventsH.SendToUser(room.ID, p.UserID, hub.Event{
			Type:    "role_assigned",
			Payload: map[string]interface{}{"player_id": p.ID, "role": string(assigned[p.ID])},
		})
	}
	if bots != nil {
		go bots.PlayNight(room.ID)
	}
	return nil
}

// OnPhaseTimeout is invoked by the scheduler (timer fire or sweep) when
// a room's persisted deadline has passed. A stale fire, for a room that
// already moved on or no longer exists, is a silent no-op.
func OnPhaseTimeout(roomID uint) {
	var room models.Room
	if err := database.DB.First(&room, roomID).Error; err != nil {
		logrus.WithField("room", roomID).Debug("timeout for missing room, ignoring")
		return
	}
	switch room.Status {
	case models.RoomNight:
		resolveNight(roomID, true)
	case models.RoomDay:
		openVote(roomID)
	case models.RoomVote:
		resolveVote(roomID, true)
	default:
		logrus.WithFields(logrus.Fields{"room": roomID, "phase": room.Status}).
			Debug("stale phase timeout, ignoring")
	}
}

// openVote closes the discussion day and opens round-1 voting.
func openVote(roomID uint) {
	withGuard(roomID, func() { openVoteLocked(roomID) })
}

func openVoteLocked(roomID uint) {
	tx := database.DB.Begin()
	var room models.Room
	if err := tx.First(&room, roomID).Error; err != nil {
		tx.Rollback()
		return
	}
	if room.Status != models.RoomDay {
		tx.Rollback()
		return
	}
	deadline := time.Now().Add(appCfg.VoteDuration())
	room.Status = models.RoomVote
	room.PhaseEndsAt = &deadline
	if err := tx.Save(&room).Error; err != nil {
		tx.Rollback()
		return
	}
	if err := tx.Commit().Error; err != nil {
		logrus.WithError(err).WithField("room", roomID).Warn("day close commit failed")
		return
	}

	logrus.WithFields(logrus.Fields{"room": roomID, "day": room.DayNumber}).Info("vote opened")
	timers.Schedule(roomID, deadline)
	emitState(roomID)
	if bots != nil {
		go bots.PlayVote(roomID)
	}
}

// ResetToLobby returns an ended (or stuck) room to the lobby, clearing
// roles, votes, night actions and alive flags. Owner-only unless forced
// by an admin. Runs under the room guard so it cannot interleave with a
// resolution in flight; contention surfaces as an out-of-phase rejection.
func ResetToLobby(roomID, callerUserID uint, admin bool) error {
	err := ErrWrongPhase
	withGuard(roomID, func() { err = resetToLobbyLocked(roomID, callerUserID, admin) })
	return err
}

func resetToLobbyLocked(roomID, callerUserID uint, admin bool) error {
	var room models.Room
	if err := database.DB.First(&room, roomID).Error; err != nil {
		return ErrRoomNotFound
	}
	if !admin && room.OwnerID != callerUserID {
		return ErrNotOwner
	}

	timers.Cancel(roomID)

	tx := database.DB.Begin()
	match, err := activeMatch(tx, roomID)
	if err == nil {
		now := time.Now()
		match.EndedAt = &now
		if err := tx.Save(match).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Unscoped().Where("match_id = ?", match.ID).Delete(&models.NightAction{}).Error; err != nil {
			tx.Rollback()
			return err
		}
	} else if !errors.Is(err, ErrNoActiveMatch) {
		tx.Rollback()
		return err
	}

	// Votes are keyed by (room, voter, type, day, round) across matches,
	// so they must be removed for real. A soft delete would leave the
	// unique key occupied and reject every ballot of the next match.
	if err := tx.Unscoped().Where("room_id = ?", roomID).Delete(&models.Vote{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Model(&models.Player{}).Where("room_id = ?", roomID).
		Updates(map[string]interface{}{"role": "", "alive": true, "ready": false}).Error; err != nil {
		tx.Rollback()
		return err
	}
	room.Status = models.RoomLobby
	room.DayNumber = 0
	room.PhaseEndsAt = nil
	if err := tx.Select("status", "day_number", "phase_ends_at").Save(&room).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	logrus.WithField("room", roomID).Info("room reset to lobby")
	emitState(roomID)
	return nil
}
