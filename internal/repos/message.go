package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/types"
)

type MessageRepo interface {
	CreateMessages(ctx context.Context, tx *gorm.DB, msgs []*types.Message) ([]*types.Message, error)
	// GetRecentByChat returns at most limit messages for the chat+owner,
	// newest first.
	GetRecentByChat(ctx context.Context, tx *gorm.DB, chatID, userID uuid.UUID, limit int) ([]*types.Message, error)
	GetByChatID(ctx context.Context, tx *gorm.DB, chatID, userID uuid.UUID) ([]*types.Message, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{
		db:  db,
		log: baseLog.With("repo", "MessageRepo"),
	}
}

func (mr *messageRepo) CreateMessages(ctx context.Context, tx *gorm.DB, msgs []*types.Message) ([]*types.Message, error) {
	if tx == nil {
		tx = mr.db
	}
	if len(msgs) == 0 {
		return msgs, nil
	}
	for _, m := range msgs {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
	}
	if err := tx.WithContext(ctx).Create(&msgs).Error; err != nil {
		mr.log.Error("failed to create messages", "error", err)
		return nil, fmt.Errorf("failed to create messages: %w", err)
	}
	return msgs, nil
}

func (mr *messageRepo) GetRecentByChat(ctx context.Context, tx *gorm.DB, chatID, userID uuid.UUID, limit int) ([]*types.Message, error) {
	if tx == nil {
		tx = mr.db
	}
	var msgs []*types.Message
	if err := tx.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		mr.log.Error("failed to get recent messages by chat", "error", err)
		return nil, err
	}
	return msgs, nil
}

func (mr *messageRepo) GetByChatID(ctx context.Context, tx *gorm.DB, chatID, userID uuid.UUID) ([]*types.Message, error) {
	if tx == nil {
		tx = mr.db
	}
	var msgs []*types.Message
	if err := tx.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		mr.log.Error("failed to get messages by chat", "error", err)
		return nil, err
	}
	return msgs, nil
}
