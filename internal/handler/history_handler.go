package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"mafia/backend/internal/database"
	"mafia/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type MatchResponse struct {
	ID        uint       `json:"id"`
	RoomID    uint       `json:"room_id"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Winner    *string    `json:"winner,omitempty"`
}

type EventResponse struct {
	ID        uint            `json:"id"`
	Phase     string          `json:"phase"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func newMatchResponse(match models.Match) MatchResponse {
	return MatchResponse{
		ID:        match.ID,
		RoomID:    match.RoomID,
		CreatedAt: match.CreatedAt,
		EndedAt:   match.EndedAt,
		Winner:    match.Winner,
	}
}

func newEventResponse(event models.Event) EventResponse {
	return EventResponse{
		ID:        event.ID,
		Phase:     event.Phase,
		Payload:   json.RawMessage(event.Payload),
		CreatedAt: event.CreatedAt,
	}
}

// GetRoomMatches godoc
// @Summary      List a room's matches
// @Description  Retrieves the room's match history, newest first.
// @Tags         history
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200 {array} MatchResponse
// @Failure      404 {object} ErrorResponse "Room not found"
// @Router       /rooms/{id}/matches [get]
func GetRoomMatches(c *gin.Context) {
	roomID, _ := strconv.Atoi(c.Param("id"))

	var room models.Room
	if err := database.DB.First(&room, roomID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}

	var matches []models.Match
	database.DB.Where("room_id = ?", roomID).Order("id DESC").Find(&matches)

	response := make([]MatchResponse, 0, len(matches))
	for _, match := range matches {
		response = append(response, newMatchResponse(match))
	}
	c.JSON(http.StatusOK, response)
}

// GetMatchEvents godoc
// @Summary      Get a match's event log
// @Description  Retrieves the append-only event log of a match in order: resolved nights, runoffs, closed votes, and the ending.
// @Tags         history
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Match ID"
// @Success      200 {array} EventResponse
// @Failure      404 {object} ErrorResponse "Match not found"
// @Router       /matches/{id}/events [get]
func GetMatchEvents(c *gin.Context) {
	matchID, _ := strconv.Atoi(c.Param("id"))

	var match models.Match
	if err := database.DB.First(&match, matchID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
		return
	}

	var events []models.Event
	database.DB.Where("match_id = ?", matchID).Order("id").Find(&events)

	response := make([]EventResponse, 0, len(events))
	for _, event := range events {
		response = append(response, newEventResponse(event))
	}
	c.JSON(http.StatusOK, response)
}
