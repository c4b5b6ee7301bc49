package types

import (
	"time"

	"github.com/google/uuid"
)

// Chat is one conversation between a user and the assistant. Created
// once on the first message of a conversation and never deleted by the
// messaging core.
type Chat struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"index;not null" json:"userId"`
	Title     string    `gorm:"column:title" json:"title"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Chat) TableName() string {
	return "chat"
}
