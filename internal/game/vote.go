package game

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mafia/backend/internal/database"
	"mafia/backend/internal/engine"
	"mafia/backend/internal/models"
)

// SubmitVote validates and records one seat's lynch ballot for the
// current day and round. Target zero is a skip. Revoting replaces the
// earlier ballot for the same round. A legal ballot immediately attempts
// early resolution.
func SubmitVote(roomID, userID, targetPlayerID uint) error {
	var room models.Room
	if err := database.DB.First(&room, roomID).Error; err != nil {
		return ErrRoomNotFound
	}
	if room.Status != models.RoomVote {
		return ErrWrongPhase
	}

	var voter models.Player
	err := database.DB.Where("room_id = ? AND user_id = ?", roomID, userID).First(&voter).Error
	if err != nil {
		return ErrNotSeated
	}
	return submitVoteForPlayer(&room, &voter, targetPlayerID)
}

// SubmitBotVote records a ballot for an automated seat.
func SubmitBotVote(roomID, playerID, targetPlayerID uint) error {
	var room models.Room
	if err := database.DB.First(&room, roomID).Error; err != nil {
		return ErrRoomNotFound
	}
	if room.Status != models.RoomVote {
		return ErrWrongPhase
	}
	var voter models.Player
	err := database.DB.Where("room_id = ? AND id = ? AND is_bot = ?", roomID, playerID, true).First(&voter).Error
	if err != nil {
		return ErrNotSeated
	}
	return submitVoteForPlayer(&room, &voter, targetPlayerID)
}

func submitVoteForPlayer(room *models.Room, voter *models.Player, targetPlayerID uint) error {
	match, err := activeMatch(database.DB, room.ID)
	if err != nil {
		return err
	}
	round, leaders, err := currentRound(database.DB, match.ID, room.DayNumber)
	if err != nil {
		return err
	}

	_, seats, err := loadPlayers(database.DB, room.ID)
	if err != nil {
		return err
	}
	var runoff []uint
	if round == 2 {
		// Round 2 only accepts the carried-over leaders; skip stays legal
		// only when it tied into the runoff.
		runoff = leaders
	}
	if err := engine.ValidateVote(seats, voter.ID, targetPlayerID, runoff); err != nil {
		return err
	}

	var existing models.Vote
	err = database.DB.Where("room_id = ? AND voter_id = ? AND type = ? AND day_number = ? AND round = ?",
		room.ID, voter.ID, models.VoteLynch, room.DayNumber, round).First(&existing).Error
	switch {
	case err == nil:
		if err := database.DB.Model(&existing).Update("target_player_id", targetPlayerID).Error; err != nil {
			return err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.Vote{
			RoomID:         room.ID,
			VoterID:        voter.ID,
			Type:           models.VoteLynch,
			DayNumber:      room.DayNumber,
			Round:          round,
			TargetPlayerID: targetPlayerID,
		}
		if err := database.DB.Create(&row).Error; err != nil {
			return err
		}
	default:
		return err
	}

	logrus.WithFields(logrus.Fields{
		"room": room.ID, "day": room.DayNumber, "round": round, "voter": voter.ID,
	}).Debug("vote recorded")

	ResolveVoteIfReady(room.ID)
	return nil
}

// currentRound loads the match's event log and derives the round in
// progress for the given day.
func currentRound(tx *gorm.DB, matchID uint, day int) (int, []uint, error) {
	var events []models.Event
	if err := tx.Where("match_id = ?", matchID).Order("id").Find(&events).Error; err != nil {
		return 0, nil, err
	}
	round, leaders := RoundFromEvents(events, day)
	return round, leaders, nil
}

// ResolveVoteIfReady resolves the vote early if every alive seat has a
// ballot in. Idempotent; a vote that already resolved is a no-op.
func ResolveVoteIfReady(roomID uint) {
	resolveVote(roomID, false)
}

func resolveVote(roomID uint, force bool) {
	withGuard(roomID, func() { resolveVoteLocked(roomID, force) })
}

func resolveVoteLocked(roomID uint, force bool) {
	tx := database.DB.Begin()

	var room models.Room
	if err := tx.First(&room, roomID).Error; err != nil {
		tx.Rollback()
		return
	}
	if room.Status != models.RoomVote {
		tx.Rollback()
		return
	}
	match, err := activeMatch(tx, roomID)
	if err != nil {
		tx.Rollback()
		return
	}
	round, _, err := currentRound(tx, match.ID, room.DayNumber)
	if err != nil {
		tx.Rollback()
		return
	}

	_, seats, err := loadPlayers(tx, roomID)
	if err != nil {
		tx.Rollback()
		return
	}

	var rows []models.Vote
	err = tx.Where("room_id = ? AND type = ? AND day_number = ? AND round = ?",
		roomID, models.VoteLynch, room.DayNumber, round).Find(&rows).Error
	if err != nil {
		tx.Rollback()
		return
	}
	ballots := toEngineBallots(rows)

	if !force && !engine.VoteReady(seats, ballots) {
		tx.Rollback()
		return
	}

	outcome := engine.TallyVotes(ballots, round)

	if len(outcome.Runoff) > 0 {
		// Round-1 tie: persist the leaders and reopen voting restricted to
		// them. Status stays VOTE; only the deadline and the log change.
		payload := RunoffPayload{Day: room.DayNumber, Leaders: outcome.Runoff}
		if err := appendEvent(tx, match.ID, models.EventVoteRunoff, payload); err != nil {
			tx.Rollback()
			return
		}
		deadline := time.Now().Add(appCfg.VoteDuration())
		room.PhaseEndsAt = &deadline
		if err := tx.Select("phase_ends_at").Save(&room).Error; err != nil {
			tx.Rollback()
			return
		}
		if err := tx.Commit().Error; err != nil {
			logrus.WithError(err).WithField("room", roomID).Warn("runoff commit failed, will retry")
			return
		}

		logrus.WithFields(logrus.Fields{
			"room": roomID, "day": room.DayNumber, "leaders": outcome.Runoff,
		}).Info("vote tied, runoff opened")

		timers.Schedule(roomID, deadline)
		emitState(roomID)
		if bots != nil {
			go bots.PlayVote(roomID)
		}
		return
	}

	if outcome.Lynched != nil {
		if err := tx.Model(&models.Player{}).Where("id = ?", *outcome.Lynched).
			Update("alive", false).Error; err != nil {
			tx.Rollback()
			return
		}
	}
	payload := VotePayload{Day: room.DayNumber, Round: round, Lynched: outcome.Lynched, Tie: outcome.Tie}
	if err := appendEvent(tx, match.ID, models.EventVoteResolved, payload); err != nil {
		tx.Rollback()
		return
	}

	survivors := make([]engine.Seat, len(seats))
	copy(survivors, seats)
	if outcome.Lynched != nil {
		for i := range survivors {
			if survivors[i].ID == *outcome.Lynched {
				survivors[i].Alive = false
			}
		}
	}
	winner := engine.Winner(survivors)

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
		deadline := time.Now().Add(appCfg.NightDuration())
		room.Status = models.RoomNight
		room.PhaseEndsAt = &deadline
	}
	if err := tx.Select("status", "phase_ends_at").Save(&room).Error; err != nil {
		tx.Rollback()
		return
	}
	if err := tx.Commit().Error; err != nil {
		logrus.WithError(err).WithField("room", roomID).Warn("vote resolution commit failed, will retry")
		return
	}

	logrus.WithFields(logrus.Fields{
		"room": roomID, "day": room.DayNumber, "round": round,
		"lynched": outcome.Lynched, "winner": winner,
	}).Info("vote resolved")

	if room.Status == models.RoomNight {
		timers.Schedule(roomID, *room.PhaseEndsAt)
	} else {
		timers.Cancel(roomID)
	}
	emitState(roomID)
	if room.Status == models.RoomNight && bots != nil {
		go bots.PlayNight(roomID)
	}
}
