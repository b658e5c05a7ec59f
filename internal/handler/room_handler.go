package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"mafia/backend/internal/database"
	"mafia/backend/internal/game"
	"mafia/backend/internal/hub"
	"mafia/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxSeats is the largest seat count with a defined role composition.
const maxSeats = 12

// region --- DTOs ---

type JoinRoomInput struct {
	Code string `json:"code" binding:"required" example:"A1B2C3"`
}

type SeatResponse struct {
	PlayerID uint   `json:"player_id"`
	UserID   uint   `json:"user_id,omitempty"`
	Nickname string `json:"nickname"`
	Alive    bool   `json:"alive"`
	Ready    bool   `json:"ready"`
	IsBot    bool   `json:"is_bot"`
}

type RoomResponse struct {
	ID     uint               `json:"id"`
	Code   string             `json:"code,omitempty"`
	Status string             `json:"status"`
	Day    int                `json:"day"`
	Owner  PublicUserResponse `json:"owner"`
	Seats  []SeatResponse     `json:"seats"`
}

// PaginatedRoomResponse defines the structure for a paginated list of rooms.
type PaginatedRoomResponse struct {
	Data []RoomResponse `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

func newSeatResponse(p models.Player) SeatResponse {
	nickname := p.User.Nickname
	if p.IsBot {
		nickname = "Bot " + strconv.FormatUint(uint64(p.ID), 10)
	}
	return SeatResponse{
		PlayerID: p.ID,
		UserID:   p.UserID,
		Nickname: nickname,
		Alive:    p.Alive,
		Ready:    p.Ready,
		IsBot:    p.IsBot,
	}
}

func newRoomResponse(room models.Room) RoomResponse {
	seats := make([]SeatResponse, 0, len(room.Players))
	for _, p := range room.Players {
		seats = append(seats, newSeatResponse(p))
	}
	return RoomResponse{
		ID:     room.ID,
		Code:   room.Code,
		Status: room.Status,
		Day:    room.DayNumber,
		Owner:  newPublicUserResponse(room.Owner),
		Seats:  seats,
	}
}

// endregion

// region --- Helpers ---

// newRoomCode derives a short join code. Uniqueness is enforced by the
// column constraint; the caller retries on collision.
func newRoomCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:6])
}

// seatedInRoom reports whether the user already holds a seat anywhere.
// A seat occupies its holder until they leave or the room is deleted;
// an ENDED room still counts, otherwise a later reset of that room
// would leave the user seated twice.
func seatedInRoom(userID uint) bool {
	var player models.Player
	err := database.DB.
		Joins("JOIN rooms ON rooms.id = players.room_id AND rooms.deleted_at IS NULL").
		Where("players.user_id = ?", userID).
		First(&player).Error
	return err == nil
}

// viewerSeated reports whether the request carries a userID holding a
// seat in the room.
func viewerSeated(c *gin.Context, room *models.Room) bool {
	userID, ok := c.Get("userID")
	if !ok {
		return false
	}
	for _, p := range room.Players {
		if !p.IsBot && p.UserID == userID.(uint) {
			return true
		}
	}
	return false
}

func loadRoomWithSeats(roomID uint) (*models.Room, error) {
	var room models.Room
	err := database.DB.Preload("Owner").Preload("Players.User").First(&room, roomID).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// endregion

// CreateRoom godoc
// @Summary      Create a new room
// @Description  Creates a new room with a fresh join code, seating the creator as owner.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  RoomResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "User is already in a room"
// @Router       /rooms [post]
func CreateRoom(c *gin.Context) {
	userID, _ := c.Get("userID")

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if seatedInRoom(user.ID) {
		c.JSON(http.StatusConflict, gin.H{"error": "User is already in a room"})
		return
	}

	tx := database.DB.Begin()

	var room models.Room
	created := false
	for attempt := 0; attempt < 3; attempt++ {
		room = models.Room{Code: newRoomCode(), Status: models.RoomLobby, OwnerID: user.ID}
		if err := tx.Create(&room).Error; err == nil {
			created = true
			break
		}
	}
	if !created {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	seat := models.Player{RoomID: room.ID, UserID: user.ID}
	if err := tx.Create(&seat).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to seat owner"})
		return
	}

	tx.Commit()

	full, err := loadRoomWithSeats(room.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load room"})
		return
	}
	c.JSON(http.StatusCreated, newRoomResponse(*full))
}

// SearchRooms godoc
// @Summary      Search for open rooms
// @Description  Gets a paginated list of joinable lobbies that still have free seats.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        page  query int false "Page number" default(1)
// @Param        limit query int false "Items per page" default(10)
// @Success      200 {object} PaginatedRoomResponse
// @Router       /rooms [get]
func SearchRooms(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	base := database.DB.Model(&models.Room{}).
		Where("rooms.status = ?", models.RoomLobby).
		Joins("LEFT JOIN players ON players.room_id = rooms.id AND players.deleted_at IS NULL").
		Group("rooms.id").
		Having("COUNT(players.id) < ?", maxSeats)

	var totalItems int64
	subQuery := base.Session(&gorm.Session{}).Select("rooms.id")
	if err := database.DB.Table("(?) as sub", subQuery).Count(&totalItems).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count rooms"})
		return
	}

	var rooms []models.Room
	err = base.Preload("Owner").Preload("Players.User").
		Offset(offset).Limit(limit).Find(&rooms).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve rooms"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, newRoomResponse(room))
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(response, totalItems, page, limit))
}

// GetRoomByID godoc
// @Summary      Get a room by ID
// @Description  Gets details for a single room. Auth is optional; the join code is only included for seated callers.
// @Tags         rooms
// @Produce      json
// @Param        id path int true "Room ID"
// @Success      200 {object} RoomResponse
// @Failure      404 {object} ErrorResponse "Room not found"
// @Router       /rooms/{id} [get]
func GetRoomByID(c *gin.Context) {
	roomID, _ := strconv.Atoi(c.Param("id"))

	room, err := loadRoomWithSeats(uint(roomID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}

	response := newRoomResponse(*room)
	if !viewerSeated(c, room) {
		response.Code = ""
	}
	c.JSON(http.StatusOK, response)
}

// JoinRoom godoc
// @Summary      Join a room by code
// @Description  Takes a seat in a lobby identified by its join code.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body JoinRoomInput true "Join code"
// @Success      200 {object} RoomResponse
// @Failure      404 {object} ErrorResponse "Room not found"
// @Failure      409 {object} ErrorResponse "Room is full, already started, or user is in another room"
// @Router       /rooms/join [post]
func JoinRoom(c *gin.Context) {
	userID, _ := c.Get("userID")

	var input JoinRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var room models.Room
	err := database.DB.Preload("Players").
		Where("code = ?", strings.ToUpper(strings.TrimSpace(input.Code))).
		First(&room).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if room.Status != models.RoomLobby {
		c.JSON(http.StatusConflict, gin.H{"error": "Game already started"})
		return
	}
	if len(room.Players) >= maxSeats {
		c.JSON(http.StatusConflict, gin.H{"error": "Room is full"})
		return
	}
	if seatedInRoom(userID.(uint)) {
		c.JSON(http.StatusConflict, gin.H{"error": "User is already in a room"})
		return
	}

	seat := models.Player{RoomID: room.ID, UserID: userID.(uint)}
	if err := database.DB.Create(&seat).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join room"})
		return
	}

	game.EmitRoomState(room.ID)

	full, err := loadRoomWithSeats(room.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load room"})
		return
	}
	c.JSON(http.StatusOK, newRoomResponse(*full))
}

// LeaveRoom godoc
// @Summary      Leave the current room
// @Description  Gives up the user's seat. Possible in the lobby and after a game has ended. Handles owner migration and empty-room deletion.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]string "{"message": "Left room successfully"}"
// @Failure      404 {object} ErrorResponse "User is not in a room"
// @Failure      409 {object} ErrorResponse "Cannot leave mid-game"
// @Router       /rooms/leave [post]
func LeaveRoom(c *gin.Context) {
	userID, _ := c.Get("userID")

	var seat models.Player
	err := database.DB.
		Joins("JOIN rooms ON rooms.id = players.room_id AND rooms.deleted_at IS NULL").
		Where("players.user_id = ?", userID).
		First(&seat).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User is not in a room"})
		return
	}

	var room models.Room
	if err := database.DB.Preload("Players").First(&room, seat.RoomID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if room.TimedPhase() {
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot leave mid-game"})
		return
	}

	tx := database.DB.Begin()

	if err := tx.Delete(&seat).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave room"})
		return
	}

	// Remaining human seats decide the room's fate: last human out
	// deletes the room (bot seats with it), a departing owner hands the
	// room to the next human.
	var nextOwner *models.Player
	humansLeft := 0
	for i := range room.Players {
		p := &room.Players[i]
		if p.ID == seat.ID || p.IsBot {
			continue
		}
		humansLeft++
		if nextOwner == nil {
			nextOwner = p
		}
	}

	if humansLeft == 0 {
		if err := tx.Where("room_id = ?", room.ID).Delete(&models.Player{}).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear seats"})
			return
		}
		if err := tx.Delete(&room).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete empty room"})
			return
		}
	} else if room.OwnerID == userID.(uint) {
		if err := tx.Model(&room).Update("owner_id", nextOwner.UserID).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to transfer ownership"})
			return
		}
	}

	tx.Commit()

	if humansLeft > 0 {
		game.EmitRoomState(room.ID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left room successfully"})
}

// ToggleReady godoc
// @Summary      Toggle ready state
// @Description  Flips the caller's ready flag while the room is in the lobby.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200 {object} map[string]bool "{"ready": true}"
// @Failure      404 {object} ErrorResponse "Seat not found"
// @Failure      409 {object} ErrorResponse "Game already started"
// @Router       /rooms/{id}/ready [post]
func ToggleReady(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	var room models.Room
	if err := database.DB.First(&room, roomID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if room.Status != models.RoomLobby {
		c.JSON(http.StatusConflict, gin.H{"error": "Game already started"})
		return
	}

	var seat models.Player
	err := database.DB.Where("room_id = ? AND user_id = ?", roomID, userID).First(&seat).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Seat not found"})
		return
	}

	if err := database.DB.Model(&seat).Update("ready", !seat.Ready).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update ready state"})
		return
	}

	game.EmitRoomState(room.ID)
	c.JSON(http.StatusOK, gin.H{"ready": !seat.Ready})
}

// AddBot godoc
// @Summary      Add a bot seat (owner only)
// @Description  Fills one free seat with a bot while the room is in the lobby.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      201 {object} SeatResponse
// @Failure      403 {object} ErrorResponse "Only the owner can add bots"
// @Failure      409 {object} ErrorResponse "Room is full or game already started"
// @Router       /rooms/{id}/bots [post]
func AddBot(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	var room models.Room
	if err := database.DB.Preload("Players").First(&room, roomID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if room.OwnerID != userID.(uint) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the owner can add bots"})
		return
	}
	if room.Status != models.RoomLobby {
		c.JSON(http.StatusConflict, gin.H{"error": "Game already started"})
		return
	}
	if len(room.Players) >= maxSeats {
		c.JSON(http.StatusConflict, gin.H{"error": "Room is full"})
		return
	}

	seat := models.Player{RoomID: room.ID, IsBot: true, Ready: true}
	if err := database.DB.Create(&seat).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add bot"})
		return
	}

	game.EmitRoomState(room.ID)
	c.JSON(http.StatusCreated, newSeatResponse(seat))
}

// KickSeat godoc
// @Summary      Kick a seat from a room (owner only)
// @Description  Removes a seat (human or bot) from the lobby. The owner cannot kick themselves.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id       path int true "Room ID"
// @Param        playerID path int true "Player ID of the seat to kick"
// @Success      200 {object} map[string]string "{"message": "Seat removed"}"
// @Failure      403 {object} ErrorResponse "Only the owner can kick seats"
// @Failure      404 {object} ErrorResponse "Room or seat not found"
// @Router       /rooms/{id}/players/{playerID} [delete]
func KickSeat(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))
	playerID, _ := strconv.Atoi(c.Param("playerID"))

	var room models.Room
	if err := database.DB.First(&room, roomID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if room.OwnerID != userID.(uint) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the owner can kick seats"})
		return
	}
	if room.Status != models.RoomLobby {
		c.JSON(http.StatusConflict, gin.H{"error": "Game already started"})
		return
	}

	var seat models.Player
	err := database.DB.Where("id = ? AND room_id = ?", playerID, roomID).First(&seat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Seat not found in this room"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load seat"})
		return
	}
	if seat.UserID == room.OwnerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Owner cannot kick themselves"})
		return
	}

	if err := database.DB.Delete(&seat).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove seat"})
		return
	}

	game.EmitRoomState(room.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Seat removed"})
}

// StreamRoom godoc
// @Summary      Subscribe to a room's event stream
// @Description  Opens a Server-Sent Events stream carrying room state and private per-seat events.
// @Tags         rooms
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200 {string} string "SSE stream"
// @Failure      403 {object} ErrorResponse "Not seated in this room"
// @Failure      404 {object} ErrorResponse "Room not found"
// @Router       /rooms/{id}/stream [get]
func StreamRoom(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	var room models.Room
	if err := database.DB.First(&room, roomID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}

	var seat models.Player
	err := database.DB.Where("room_id = ? AND user_id = ?", roomID, userID).First(&seat).Error
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not seated in this room"})
		return
	}

	client := make(hub.Client, 16)
	hub.GlobalHub.Subscribe(room.ID, userID.(uint), client)
	defer hub.GlobalHub.Unsubscribe(room.ID, client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// Reconnecting clients catch up from the snapshot before live events.
	game.EmitRoomState(room.ID)

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			return true
		case <-ctx.Done():
			return false
		}
	})
}
