package db

import (
  "fmt"
  "gorm.io/driver/postgres"
  "gorm.io/gorm"
  "github.com/yachay-edu/yachay-backend/internal/types"
  "github.com/yachay-edu/yachay-backend/internal/utils"
  "github.com/yachay-edu/yachay-backend/internal/logger"
)

type PostgresService struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  log.Info("Loading environment variables...")
  postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
  postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
  postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
  postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
  postgresName := utils.GetEnv("POSTGRES_NAME", "yachay", log)
  log.Debug("Environment variables loaded")

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

  log.Info("Connecting to Postgres...")
  db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    log.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
    log.Error("Failed to enable uuid-ossp extension", "error", err)
    return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
  }
  log.Info("uuid-ossp extension enabled")

  return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating postgres tables...")
  err := s.db.AutoMigrate(
    &types.Module{},
    &types.Topic{},
    &types.ContentItem{},
    &types.Evaluation{},
    &types.ModuleVersion{},
    &types.StudentProfileRecord{},
    &types.VirtualModule{},
    &types.VirtualTopic{},
    &types.VirtualContent{},
    &types.GenerationTask{},
  )
  if err != nil {
    s.log.Error("Auto migration failed for postgres tables", "error", err)
    return err
  }
  // Partial index backing the one-in-flight-task-per-pair invariant. AutoMigrate
  // cannot express it, the claim/enqueue paths rely on it under concurrency.
  if err := s.db.Exec(`
    CREATE UNIQUE INDEX IF NOT EXISTS idx_task_in_flight
    ON "generation_task" ("student_id", "module_id")
    WHERE status IN ('pending', 'processing')
  `).Error; err != nil {
    return fmt.Errorf("Failed to create idx_task_in_flight: %w", err)
  }
  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
