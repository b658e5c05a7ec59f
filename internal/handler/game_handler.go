package handler

import (
	"errors"
	"net/http"
	"strconv"

	"mafia/backend/internal/game"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

type NightActionInput struct {
	Role           string `json:"role" binding:"required" example:"DOCTOR"`
	TargetPlayerID *uint  `json:"target_player_id"` // null means skip
}

type VoteInput struct {
	TargetPlayerID uint `json:"target_player_id"` // zero means skip
}

// endregion

// statusForGameError maps orchestrator rejections to HTTP codes. Engine
// validation failures (illegal target, spent ability, and so on) fall
// through to 422.
func statusForGameError(err error) int {
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNotSeated), errors.Is(err, game.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, game.ErrWrongPhase), errors.Is(err, game.ErrTooFewPlayers),
		errors.Is(err, game.ErrNoActiveMatch):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// StartGame godoc
// @Summary      Start the game (owner only)
// @Description  Deals roles for the current seats and opens the first night.
// @Tags         game
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200 {object} map[string]string "{"message": "Game started"}"
// @Failure      403 {object} ErrorResponse "Only the owner can start the game"
// @Failure      404 {object} ErrorResponse "Room not found"
// @Failure      409 {object} ErrorResponse "Not in lobby or too few players"
// @Router       /rooms/{id}/start [post]
func StartGame(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	if err := game.StartGame(uint(roomID), userID.(uint)); err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Game started"})
}

// SubmitNightAction godoc
// @Summary      Submit a night action
// @Description  Records the caller's night action for their role. A null target is a skip where the role allows it.
// @Tags         game
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int              true "Room ID"
// @Param        input body NightActionInput true "Action"
// @Success      200 {object} map[string]string "{"message": "Action recorded"}"
// @Failure      403 {object} ErrorResponse "Not seated in this room"
// @Failure      409 {object} ErrorResponse "Not night"
// @Failure      422 {object} ErrorResponse "Illegal action"
// @Router       /rooms/{id}/night-action [post]
func SubmitNightAction(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	var input NightActionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := game.SubmitNightAction(uint(roomID), userID.(uint), input.Role, input.TargetPlayerID)
	if err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Action recorded"})
}

// SubmitVote godoc
// @Summary      Submit a lynch vote
// @Description  Records the caller's ballot for the current vote round. Target zero is a skip. Revoting replaces the earlier ballot.
// @Tags         game
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int       true "Room ID"
// @Param        input body VoteInput true "Ballot"
// @Success      200 {object} map[string]string "{"message": "Vote recorded"}"
// @Failure      403 {object} ErrorResponse "Not seated in this room"
// @Failure      409 {object} ErrorResponse "Not voting"
// @Failure      422 {object} ErrorResponse "Illegal ballot"
// @Router       /rooms/{id}/vote [post]
func SubmitVote(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	var input VoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := game.SubmitVote(uint(roomID), userID.(uint), input.TargetPlayerID)
	if err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vote recorded"})
}

// GetRoomState godoc
// @Summary      Get the room's public game state
// @Description  Returns the snapshot a reconnecting client needs: phase, day, deadline, seats, and the current tally during a vote.
// @Tags         game
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200 {object} game.Snapshot
// @Failure      404 {object} ErrorResponse "Room not found"
// @Router       /rooms/{id}/state [get]
func GetRoomState(c *gin.Context) {
	roomID, _ := strconv.Atoi(c.Param("id"))

	snap, err := game.BuildSnapshot(uint(roomID))
	if err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ResetRoom godoc
// @Summary      Reset the room to the lobby (owner only)
// @Description  Closes any running match and returns the room to the lobby with roles and votes cleared.
// @Tags         game
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200 {object} map[string]string "{"message": "Room reset"}"
// @Failure      403 {object} ErrorResponse "Only the owner can reset the room"
// @Failure      404 {object} ErrorResponse "Room not found"
// @Router       /rooms/{id}/reset [post]
func ResetRoom(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	if err := game.ResetToLobby(uint(roomID), userID.(uint), false); err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Room reset"})
}

// ForceResetRoom godoc
// @Summary      Force-reset a room (admin only)
// @Description  Resets a stuck room to the lobby regardless of who owns it.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200 {object} map[string]string "{"message": "Room reset"}"
// @Failure      403 {object} ErrorResponse "Admin access required"
// @Failure      404 {object} ErrorResponse "Room not found"
// @Router       /admin/rooms/{id}/reset [post]
func ForceResetRoom(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	if err := game.ResetToLobby(uint(roomID), userID.(uint), true); err != nil {
		c.JSON(statusForGameError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Room reset"})
}
