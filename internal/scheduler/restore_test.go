package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mafia/backend/internal/database"
	"mafia/backend/internal/models"
)

func openTestDB(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Room{}))
	database.DB = db
}

func TestRestoreOnBootArmsOnlyTimedPhases(t *testing.T) {
	openTestDB(t)

	deadline := time.Now().Add(time.Hour)
	rooms := []models.Room{
		{Code: "NIGHT1", Status: models.RoomNight, OwnerID: 1, PhaseEndsAt: &deadline},
		// Stale deadlines on untimed phases must not arm timers.
		{Code: "LOBBY1", Status: models.RoomLobby, OwnerID: 1, PhaseEndsAt: &deadline},
		{Code: "ENDED1", Status: models.RoomEnded, OwnerID: 1, PhaseEndsAt: &deadline},
		{Code: "DAY001", Status: models.RoomDay, OwnerID: 1},
	}
	for i := range rooms {
		require.NoError(t, database.DB.Create(&rooms[i]).Error)
	}

	rec := newFireRecorder()
	s := New(rec.onTimeout, time.Hour)
	require.NoError(t, s.RestoreOnBoot())

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.timers, 1)
	_, armed := s.timers[rooms[0].ID]
	assert.True(t, armed, "only the mid-phase room gets a timer")
}
