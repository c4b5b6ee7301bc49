package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/types"
)

type ChatRepo interface {
	CreateChat(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error)
	GetByID(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.Chat, error)
	GetAllByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Chat, error)
	TouchUpdatedAt(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type chatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRepo(db *gorm.DB, baseLog *logger.Logger) ChatRepo {
	return &chatRepo{
		db:  db,
		log: baseLog.With("repo", "ChatRepo"),
	}
}

func (cr *chatRepo) CreateChat(ctx context.Context, tx *gorm.DB, chat *types.Chat) (*types.Chat, error) {
	if tx == nil {
		tx = cr.db
	}
	if chat.ID == uuid.Nil {
		chat.ID = uuid.New()
	}
	if err := tx.WithContext(ctx).Create(chat).Error; err != nil {
		cr.log.Error("failed to create chat", "error", err)
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

// GetByID is owner-scoped: a chat id belonging to another user behaves
// like a missing chat.
func (cr *chatRepo) GetByID(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.Chat, error) {
	if tx == nil {
		tx = cr.db
	}
	var c types.Chat
	if err := tx.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (cr *chatRepo) GetAllByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Chat, error) {
	if tx == nil {
		tx = cr.db
	}
	var chats []*types.Chat
	if err := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&chats).Error; err != nil {
		cr.log.Error("failed to get chats by user", "error", err)
		return nil, err
	}
	return chats, nil
}

func (cr *chatRepo) TouchUpdatedAt(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		tx = cr.db
	}
	now := time.Now()
	if err := tx.WithContext(ctx).
		Model(&types.Chat{}).
		Where("id = ?", id).
		Update("updated_at", &now).Error; err != nil {
		return err
	}
	return nil
}
