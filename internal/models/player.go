package models

import "gorm.io/gorm"

// Player is a seat in a room. Role is empty until a game starts and is
// cleared again on lobby reset. Bot seats have IsBot set and a zero UserID.
type Player struct {
	gorm.Model
	RoomID uint   `gorm:"not null;index"`
	UserID uint   `gorm:"index"`
	Alive  bool   `gorm:"not null;default:true"`
	Role   string `gorm:"size:16"`
	Ready  bool   `gorm:"not null;default:false"`
	IsBot  bool   `gorm:"not null;default:false"`

	User User `gorm:"foreignKey:UserID"`
}
