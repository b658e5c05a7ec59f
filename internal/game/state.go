package game

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"mafia/backend/internal/database"
	"mafia/backend/internal/hub"
	"mafia/backend/internal/models"
)

// SeatState is one seat in a public room snapshot. Roles are never
// included here; seats learn their own role over the private channel.
type SeatState struct {
	PlayerID uint   `json:"player_id"`
	UserID   uint   `json:"user_id,omitempty"`
	Nickname string `json:"nickname"`
	Alive    bool   `json:"alive"`
	Ready    bool   `json:"ready"`
	IsBot    bool   `json:"is_bot"`
}

// Snapshot is the public room state emitted after every committed
// transition and served to reconnecting clients. Readers outside the
// resolution lock tolerate it being momentarily stale; the post-commit
// re-emit converges them.
type Snapshot struct {
	RoomID     uint         `json:"room_id"`
	Code       string       `json:"code"`
	Phase      string       `json:"phase"`
	Day        int          `json:"day"`
	Round      int          `json:"round,omitempty"`
	Deadline   *time.Time   `json:"deadline,omitempty"`
	Seats      []SeatState  `json:"seats"`
	Tally      map[uint]int `json:"tally,omitempty"`
	Candidates []uint       `json:"candidates,omitempty"`
	Winner     *string      `json:"winner,omitempty"`
}

// BuildSnapshot assembles the current public state of a room.
func BuildSnapshot(roomID uint) (*Snapshot, error) {
	var room models.Room
	if err := database.DB.First(&room, roomID).Error; err != nil {
		return nil, ErrRoomNotFound
	}

	var players []models.Player
	err := database.DB.Preload("User").Where("room_id = ?", roomID).Order("id").Find(&players).Error
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		RoomID:   room.ID,
		Code:     room.Code,
		Phase:    room.Status,
		Day:      room.DayNumber,
		Deadline: room.PhaseEndsAt,
	}
	for _, p := range players {
		nick := p.User.Nickname
		if p.IsBot {
			nick = fmt.Sprintf("Bot %d", p.ID)
		}
		snap.Seats = append(snap.Seats, SeatState{
			PlayerID: p.ID,
			UserID:   p.UserID,
			Nickname: nick,
			Alive:    p.Alive,
			Ready:    p.Ready,
			IsBot:    p.IsBot,
		})
	}

	if room.Status == models.RoomVote {
		match, err := activeMatch(database.DB, roomID)
		if err != nil {
			return nil, err
		}
		round, leaders, err := currentRound(database.DB, match.ID, room.DayNumber)
		if err != nil {
			return nil, err
		}
		snap.Round = round
		snap.Candidates = leaders

		var votes []models.Vote
		err = database.DB.Where("room_id = ? AND type = ? AND day_number = ? AND round = ?",
			roomID, models.VoteLynch, room.DayNumber, round).Find(&votes).Error
		if err != nil {
			return nil, err
		}
		snap.Tally = make(map[uint]int)
		for _, v := range votes {
			snap.Tally[v.TargetPlayerID]++
		}
	}

	if room.Status == models.RoomEnded {
		var match models.Match
		err := database.DB.Where("room_id = ?", roomID).Order("id DESC").First(&match).Error
		if err == nil {
			snap.Winner = match.Winner
		}
	}

	return snap, nil
}

// EmitRoomState broadcasts the room's snapshot to every subscribed
// client. Lobby mutations (join, leave, ready) call it from handlers.
func EmitRoomState(roomID uint) {
	emitState(roomID)
}

// emitState broadcasts the room's snapshot to every subscribed client.
func emitState(roomID uint) {
	snap, err := BuildSnapshot(roomID)
	if err != nil {
		logrus.WithError(err).WithField("room", roomID).Warn("snapshot build failed")
		return
	}
	eventsH.Broadcast(roomID, hub.Event{Type: "room_state", Payload: snap})
}
