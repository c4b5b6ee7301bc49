package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/intec-ai/intec-backend/internal/logger"
	"github.com/intec-ai/intec-backend/internal/types"
	"github.com/intec-ai/intec-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	//1) Get and Set Environment Variables
	log.Info("Attempting to load environment variables for Postgres now...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "intec", log)

	//2) Construct DSN From Environment Variables
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	//3) Attempt DB Connection
	log.Info("Attempting to connect to Postgres DB now...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres DB", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres DB: %w", err)
	}
	log.Info("Successfully Connected to Postgres DB :)")

	//4) Enable uuid-ossp Extension
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Error("Failed to enable uuid-ossp extension :(", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Starting AutoMigrateAll for all GORM models now...")

	err := s.db.AutoMigrate(
		&types.User{},
		&types.Chat{},
		&types.Message{},
	)
	if err != nil {
		s.log.Error("AutoMigrateAll failed for Base Tables :(", "error", err)
		return err
	}
	s.log.Info("AutoMigrateAll completed successfully for Base Tables :)")

	s.log.Info("Configuring Foreign Key Relationships for Base Tables now...")
	// -- Chat.user_id => user.id (ON DELETE CASCADE)
	if err := s.db.Exec(`
		ALTER TABLE "chat"
		ADD CONSTRAINT "fk_chat_user_id"
		FOREIGN KEY ("user_id")
		REFERENCES "user"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("failed to add fk_chat_user_id: %w", err)
	}
	// -- Message.chat_id => chat.id (ON DELETE CASCADE)
	if err := s.db.Exec(`
		ALTER TABLE "message"
		ADD CONSTRAINT "fk_message_chat_id"
		FOREIGN KEY ("chat_id")
		REFERENCES "chat"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("failed to add fk_message_chat_id: %w", err)
	}
	// -- Message.user_id => user.id (ON DELETE CASCADE)
	if err := s.db.Exec(`
		ALTER TABLE "message"
		ADD CONSTRAINT "fk_message_user_id"
		FOREIGN KEY ("user_id")
		REFERENCES "user"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("failed to add fk_message_user_id: %w", err)
	}
	s.log.Info("Successfully Added Foreign Key Relationships to Base Tables :)")

	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
