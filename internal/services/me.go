package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/repos"
	"github.com/intec-ai/intec-backend/internal/requestdata"
	"github.com/intec-ai/intec-backend/internal/types"
)

type MeService interface {
	GetMe(ctx context.Context) (*types.User, error)
}

type meService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewMeService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo) MeService {
	return &meService{
		db:       db,
		log:      log.With("service", "MeService"),
		userRepo: userRepo,
	}
}

func (ms *meService) GetMe(ctx context.Context) (*types.User, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("no authenticated user in request context")
	}
	return ms.userRepo.GetByID(ctx, nil, rd.UserID)
}
