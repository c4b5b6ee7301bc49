package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	MessageRoleUser = "user"
	MessageRoleIA   = "ia"
)

// Message is a single chat entry. Rows are immutable and always written
// in pairs: the user question followed by the assistant answer, both
// inside the same database transaction.
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ChatID    uuid.UUID `gorm:"index;not null" json:"chatId"`
	UserID    uuid.UUID `gorm:"index;not null" json:"userId"`
	Role      string    `gorm:"not null;column:role" json:"role"`
	Content   string    `gorm:"not null;column:content" json:"content"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Message) TableName() string {
	return "message"
}

// ChatMessage is the role/content projection of a Message handed to the
// model as conversation context. It is never persisted.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
