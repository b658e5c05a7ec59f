package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mafia/backend/internal/auth"
	"mafia/backend/internal/config"
	"mafia/backend/internal/database"
	"mafia/backend/internal/models"
	"mafia/backend/pkg/jwt"
)

// openTestDB points the global handle at a fresh in-memory database.
// cache=shared keeps every pooled connection on the same instance.
func openTestDB(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.AppConfig = &config.Config{JWTSecret: "handler-test-secret"}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Room{}, &models.Player{},
		&models.Match{}, &models.NightAction{}, &models.Vote{}, &models.Event{},
	))
	database.DB = db
}

func seedUser(t *testing.T, name string) models.User {
	t.Helper()
	user := models.User{
		Nickname:     fmt.Sprintf("%s-%s", t.Name(), name),
		Email:        fmt.Sprintf("%s-%s@test.local", t.Name(), name),
		PasswordHash: "x",
		Role:         "user",
	}
	require.NoError(t, database.DB.Create(&user).Error)
	return user
}

var roomSeq int

func seedRoomWithSeat(t *testing.T, status string, owner models.User) (models.Room, models.Player) {
	t.Helper()
	roomSeq++
	room := models.Room{Code: fmt.Sprintf("RM%04d", roomSeq), Status: status, OwnerID: owner.ID}
	require.NoError(t, database.DB.Create(&room).Error)
	seat := models.Player{RoomID: room.ID, UserID: owner.ID, Alive: true}
	require.NoError(t, database.DB.Create(&seat).Error)
	return room, seat
}

// authAs stands in for the auth middleware on protected routes.
func authAs(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

func TestRoomDetailsElideCodeForOutsiders(t *testing.T) {
	openTestDB(t)
	owner := seedUser(t, "owner")
	room, _ := seedRoomWithSeat(t, models.RoomLobby, owner)

	router := gin.New()
	router.GET("/rooms/:id", auth.OptionalAuthMiddleware(), GetRoomByID)

	fetch := func(token string) RoomResponse {
		t.Helper()
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/rooms/%d", room.ID), nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		var got RoomResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		return got
	}

	// Anonymous viewers get the room card without the join code.
	got := fetch("")
	assert.Equal(t, room.ID, got.ID)
	assert.Empty(t, got.Code)

	// A seated caller sees the code.
	token, err := jwt.GenerateToken(owner.ID)
	require.NoError(t, err)
	assert.Equal(t, room.Code, fetch(token).Code)

	// A valid token without a seat in this room gets the code elided too.
	outsider := seedUser(t, "outsider")
	outsiderToken, err := jwt.GenerateToken(outsider.ID)
	require.NoError(t, err)
	assert.Empty(t, fetch(outsiderToken).Code)
}

func TestCreateRefusedWhileSeatedInEndedRoom(t *testing.T) {
	openTestDB(t)
	user := seedUser(t, "stuck")
	seedRoomWithSeat(t, models.RoomEnded, user)

	router := gin.New()
	router.POST("/rooms", authAs(user.ID), CreateRoom)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rooms", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestJoinRefusedWhileSeatedInEndedRoom(t *testing.T) {
	openTestDB(t)
	user := seedUser(t, "stuck")
	seedRoomWithSeat(t, models.RoomEnded, user)
	other := seedUser(t, "host")
	open, _ := seedRoomWithSeat(t, models.RoomLobby, other)

	router := gin.New()
	router.POST("/rooms/join", authAs(user.ID), JoinRoom)

	body := strings.NewReader(fmt.Sprintf(`{"code":%q}`, open.Code))
	req := httptest.NewRequest(http.MethodPost, "/rooms/join", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLeaveEndedRoomFreesTheSeat(t *testing.T) {
	openTestDB(t)
	user := seedUser(t, "leaver")
	room, seat := seedRoomWithSeat(t, models.RoomEnded, user)

	router := gin.New()
	router.POST("/rooms/leave", authAs(user.ID), LeaveRoom)
	router.POST("/rooms", authAs(user.ID), CreateRoom)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rooms/leave", nil))
	require.Equal(t, http.StatusOK, w.Code)

	// Last human out deletes the room and its seats.
	err := database.DB.First(&models.Player{}, seat.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	err = database.DB.First(&models.Room{}, room.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// With the seat released the user can open a new room.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rooms", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestLeaveRefusedMidGame(t *testing.T) {
	openTestDB(t)
	user := seedUser(t, "seated")
	seedRoomWithSeat(t, models.RoomNight, user)

	router := gin.New()
	router.POST("/rooms/leave", authAs(user.ID), LeaveRoom)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rooms/leave", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}
