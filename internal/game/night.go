package game

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mafia/backend/internal/database"
	"mafia/backend/internal/engine"
	"mafia/backend/internal/hub"
	"mafia/backend/internal/models"
)

// SubmitNightAction validates and records one seat's night action. The
// submitted role must match the seat's current role; mafia-side seats
// may overwrite an earlier submission within the same night, every other
// role gets one shot at it. A legal submission immediately attempts
// early resolution.
func SubmitNightAction(roomID, userID uint, role string, targetPlayerID *uint) error {
	var room models.Room
	if err := database.DB.First(&room, roomID).Error; err != nil {
		return ErrRoomNotFound
	}
	if room.Status != models.RoomNight {
		return ErrWrongPhase
	}

	var actor models.Player
	err := database.DB.Where("room_id = ? AND user_id = ?", roomID, userID).First(&actor).Error
	if err != nil {
		return ErrNotSeated
	}
	return submitNightActionForPlayer(&room, &actor, role, targetPlayerID)
}

// SubmitBotNightAction records a night action for an automated seat.
// Bot submissions go through exactly the same validation as human ones.
func SubmitBotNightAction(roomID, playerID uint, role string, targetPlayerID *uint) error {
	var room models.Room
	if err := database.DB.First(&room, roomID).Error; err != nil {
		return ErrRoomNotFound
	}
	if room.Status != models.RoomNight {
		return ErrWrongPhase
	}
	var actor models.Player
	err := database.DB.Where("room_id = ? AND id = ? AND is_bot = ?", roomID, playerID, true).First(&actor).Error
	if err != nil {
		return ErrNotSeated
	}
	return submitNightActionForPlayer(&room, &actor, role, targetPlayerID)
}

// submitNightActionForPlayer is the shared path for human and bot
// submissions; bots address their seat directly.
func submitNightActionForPlayer(room *models.Room, actor *models.Player, role string, targetPlayerID *uint) error {
	match, err := activeMatch(database.DB, room.ID)
	if err != nil {
		return err
	}
	night := room.NightNumber()

	_, seats, err := loadPlayers(database.DB, room.ID)
	if err != nil {
		return err
	}
	history, existing, err := actionHistory(match.ID, actor.ID, night)
	if err != nil {
		return err
	}

	if err := engine.ValidateNightAction(seats, actor.ID, engine.Role(role), targetPlayerID, history); err != nil {
		return err
	}

	if existing != nil {
		if err := database.DB.Model(existing).Update("target_player_id", targetPlayerID).Error; err != nil {
			return err
		}
	} else {
		row := models.NightAction{
			MatchID:        match.ID,
			NightNumber:    night,
			ActorPlayerID:  actor.ID,
			Role:           role,
			TargetPlayerID: targetPlayerID,
		}
		if err := database.DB.Create(&row).Error; err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"room": room.ID, "night": night, "actor": actor.ID, "role": role,
	}).Debug("night action recorded")

	ResolveNightIfReady(room.ID)
	return nil
}

// actionHistory recomputes the validation history for one actor from
// persisted rows. No counters are cached anywhere, so a crash between
// submissions can never leave the predicate stale.
func actionHistory(matchID, actorID uint, night int) (engine.History, *models.NightAction, error) {
	var h engine.History

	var existing models.NightAction
	err := database.DB.Where("match_id = ? AND night_number = ? AND actor_player_id = ?",
		matchID, night, actorID).First(&existing).Error
	var existingRow *models.NightAction
	switch {
	case err == nil:
		h.HasActed = true
		existingRow = &existing
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return h, nil, err
	}

	var prev models.NightAction
	err = database.DB.Where("match_id = ? AND night_number = ? AND actor_player_id = ?",
		matchID, night-1, actorID).First(&prev).Error
	if err == nil {
		h.PrevTargetID = prev.TargetPlayerID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return h, nil, err
	}

	var selfHeals int64
	err = database.DB.Model(&models.NightAction{}).
		Where("match_id = ? AND actor_player_id = ? AND role = ? AND target_player_id = ? AND night_number < ?",
			matchID, actorID, string(engine.RoleDoctor), actorID, night).
		Count(&selfHeals).Error
	if err != nil {
		return h, nil, err
	}
	h.SelfHeals = int(selfHeals)

	var shots int64
	err = database.DB.Model(&models.NightAction{}).
		Where("match_id = ? AND actor_player_id = ? AND role = ? AND target_player_id IS NOT NULL AND night_number < ?",
			matchID, actorID, string(engine.RoleSniper), night).
		Count(&shots).Error
	if err != nil {
		return h, nil, err
	}
	h.ShotsFired = int(shots)

	return h, existingRow, nil
}

// ResolveNightIfReady resolves the night early if every required actor
// has acted. Idempotent: callers invoke it after every human action and
// a night that already resolved (or is not ready) is a no-op.
func ResolveNightIfReady(roomID uint) {
	resolveNight(roomID, false)
}

func resolveNight(roomID uint, force bool) {
	withGuard(roomID, func() { resolveNightLocked(roomID, force) })
}

func resolveNightLocked(roomID uint, force bool) {
	tx := database.DB.Begin()

	var room models.Room
	if err := tx.First(&room, roomID).Error; err != nil {
		tx.Rollback()
		return
	}
	if room.Status != models.RoomNight {
		tx.Rollback()
		return
	}
	match, err := activeMatch(tx, roomID)
	if err != nil {
		tx.Rollback()
		return
	}

	players, seats, err := loadPlayers(tx, roomID)
	if err != nil {
		tx.Rollback()
		return
	}
	night := room.NightNumber()

	var rows []models.NightAction
	if err := tx.Where("match_id = ? AND night_number = ?", match.ID, night).Find(&rows).Error; err != nil {
		tx.Rollback()
		return
	}
	actions := toEngineActions(rows)

	if !force && !engine.NightReady(seats, actions) {
		tx.Rollback()
		return
	}

	outcome := engine.ResolveNight(seats, actions, rules(), newRNG())

	for _, id := range outcome.Deaths {
		if err := tx.Model(&models.Player{}).Where("id = ?", id).Update("alive", false).Error; err != nil {
			tx.Rollback()
			return
		}
	}

	survivors := make([]engine.Seat, len(seats))
	copy(survivors, seats)
	for i := range survivors {
		for _, dead := range outcome.Deaths {
			if survivors[i].ID == dead {
				survivors[i].Alive = false
			}
		}
	}
	winner := engine.Winner(survivors)

	payload := NightPayload{
		Night:       night,
		Deaths:      outcome.Deaths,
		Saved:       outcome.Saved,
		Blocked:     outcome.Blocked,
		Guarded:     outcome.Guarded,
		MafiaTarget: outcome.MafiaTarget,
	}
	if err := appendEvent(tx, match.ID, models.EventNightResolved, payload); err != nil {
		tx.Rollback()
		return
	}

	if winner != nil {
		now := time.Now()
		match.Winner = winner
		match.EndedAt = &now
		if err := tx.Save(match).Error; err != nil {
			tx.Rollback()
			return
		}
		if err := appendEvent(tx, match.ID, models.EventMatchEnded, EndPayload{Winner: *winner}); err != nil {
			tx.Rollback()
			return
		}
		room.Status = models.RoomEnded
		room.PhaseEndsAt = nil
	} else {
		deadline := time.Now().Add(appCfg.DayDuration())
		room.Status = models.RoomDay
		room.DayNumber++
		room.PhaseEndsAt = &deadline
	}
	if err := tx.Select("status", "day_number", "phase_ends_at").Save(&room).Error; err != nil {
		tx.Rollback()
		return
	}
	if err := tx.Commit().Error; err != nil {
		logrus.WithError(err).WithField("room", roomID).Warn("night resolution commit failed, will retry")
		return
	}

	logrus.WithFields(logrus.Fields{
		"room": roomID, "night": night, "deaths": len(outcome.Deaths), "winner": winner,
	}).Info("night resolved")

	if room.Status == models.RoomDay {
		timers.Schedule(roomID, *room.PhaseEndsAt)
	} else {
		timers.Cancel(roomID)
	}
	emitState(roomID)
	emitNightPrivate(&room, players, outcome)
}

// emitNightPrivate delivers the per-seat signals a night produces: the
// investigators' results and the "you were blocked/healed/guarded"
// notices. Only the affected seat's user ever sees them.
func emitNightPrivate(room *models.Room, players []models.Player, outcome engine.NightOutcome) {
	userOf := make(map[uint]uint, len(players))
	botSeat := make(map[uint]bool, len(players))
	for _, p := range players {
		userOf[p.ID] = p.UserID
		botSeat[p.ID] = p.IsBot
	}
	sendSeat := func(seatID uint, ev hub.Event) {
		if botSeat[seatID] {
			return
		}
		eventsH.SendToUser(room.ID, userOf[seatID], ev)
	}

	if r := outcome.Sheriff; r != nil {
		sendSeat(r.SeatID, hub.Event{Type: "sheriff_result", Payload: map[string]interface{}{
			"target_id": r.TargetID, "mafia": r.MafiaSide,
		}})
	}
	if r := outcome.Journalist; r != nil {
		sendSeat(r.SeatID, hub.Event{Type: "journalist_result", Payload: map[string]interface{}{
			"target_id": r.TargetID, "mafia": r.MafiaSide,
		}})
	}
	for _, id := range outcome.Blocked {
		sendSeat(id, hub.Event{Type: "seat_blocked", Payload: map[string]interface{}{}})
	}
	for _, id := range outcome.Saved {
		sendSeat(id, hub.Event{Type: "seat_healed", Payload: map[string]interface{}{}})
	}
	if outcome.Guarded != nil {
		sendSeat(*outcome.Guarded, hub.Event{Type: "seat_guarded", Payload: map[string]interface{}{}})
	}
}
