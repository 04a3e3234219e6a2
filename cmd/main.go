package main

import (
  "context"
  "fmt"
  "os"
  "time"

  "github.com/yachay-edu/yachay-backend/internal/clients/redis"
  "github.com/yachay-edu/yachay-backend/internal/db"
  "github.com/yachay-edu/yachay-backend/internal/handlers"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/repos"
  "github.com/yachay-edu/yachay-backend/internal/server"
  "github.com/yachay-edu/yachay-backend/internal/services"
  "github.com/yachay-edu/yachay-backend/internal/sse"
  "github.com/yachay-edu/yachay-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  workerPoll := utils.GetEnvAsDuration("WORKER_POLL_INTERVAL", 10*time.Second, log)
  workerClaimLimit := utils.GetEnvAsInt("WORKER_CLAIM_LIMIT", 4, log)
  workerClaimBudget := utils.GetEnvAsDuration("WORKER_CLAIM_BUDGET", 5*time.Minute, log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  moduleRepo := repos.NewModuleRepo(thePG, log)
  topicRepo := repos.NewTopicRepo(thePG, log)
  contentItemRepo := repos.NewContentItemRepo(thePG, log)
  evaluationRepo := repos.NewEvaluationRepo(thePG, log)
  studentProfileRepo := repos.NewStudentProfileRepo(thePG, log)
  moduleVersionRepo := repos.NewModuleVersionRepo(thePG, log)
  virtualModuleRepo := repos.NewVirtualModuleRepo(thePG, log)
  virtualTopicRepo := repos.NewVirtualTopicRepo(thePG, log)
  virtualContentRepo := repos.NewVirtualContentRepo(thePG, log)
  generationTaskRepo := repos.NewGenerationTaskRepo(thePG, log)

  // SSE
  log.Info("Setting up SSE hub now...")
  sseHub := sse.NewSSEHub(log)
  var bus redis.SSEBus
  if os.Getenv("REDIS_ADDR") != "" {
    bus, err = redis.NewSSEBus(log)
    if err != nil {
      log.Warn("Redis SSE bus init failed, running single-instance", "error", err)
      bus = nil
    } else {
      if err := bus.StartForwarder(context.Background(), sseHub.Broadcast); err != nil {
        log.Warn("Redis SSE forwarder failed to start", "error", err)
      }
    }
  }

  // Services
  log.Info("Setting up Services from main...")
  selector := services.NewContentSelector(log, services.DefaultSelectorWeights)
  notifier := services.NewEventNotifier(log, sseHub, bus)
  profileService := services.NewProfileService(thePG, log, studentProfileRepo)
  topicGenService := services.NewTopicGenerationService(thePG, log, selector, virtualTopicRepo, virtualContentRepo, contentItemRepo)
  moduleGenService := services.NewModuleGenerationService(
    thePG,
    log,
    profileService,
    topicGenService,
    notifier,
    moduleRepo,
    topicRepo,
    virtualModuleRepo,
    virtualTopicRepo,
  )
  syncService := services.NewSyncService(
    thePG,
    log,
    profileService,
    topicGenService,
    notifier,
    topicRepo,
    contentItemRepo,
    virtualModuleRepo,
    virtualTopicRepo,
    virtualContentRepo,
  )
  queueMaintService := services.NewQueueMaintenanceService(
    thePG,
    log,
    profileService,
    topicGenService,
    notifier,
    topicRepo,
    virtualModuleRepo,
    virtualTopicRepo,
  )
  changeDetectionService := services.NewChangeDetectionService(thePG, log, moduleRepo, topicRepo, evaluationRepo, moduleVersionRepo)
  taskQueueService := services.NewTaskQueueService(thePG, log, generationTaskRepo, moduleGenService, syncService, virtualModuleRepo)
  taskQueueService.StartWorker(context.Background(), services.WorkerConfig{
    ClaimLimit:   workerClaimLimit,
    ClaimBudget:  workerClaimBudget,
    PollInterval: workerPoll,
  })
  moduleEventService := services.NewModuleEventService(thePG, log, changeDetectionService, syncService, taskQueueService, virtualModuleRepo)
  queryService := services.NewVirtualModuleQueryService(thePG, log, selector, contentItemRepo, virtualModuleRepo, virtualTopicRepo, virtualContentRepo)

  // Handlers
  log.Info("Setting up handlers from main...")
  virtualModuleHandler := handlers.NewVirtualModuleHandler(moduleGenService, taskQueueService, queryService)
  progressHandler := handlers.NewProgressHandler(queueMaintService)
  moduleHandler := handlers.NewModuleHandler(moduleEventService)
  realtimeHandler := handlers.NewRealtimeHandler(log, sseHub)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    VirtualModuleHandler: virtualModuleHandler,
    ProgressHandler:      progressHandler,
    ModuleHandler:        moduleHandler,
    RealtimeHandler:      realtimeHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed: %v", err)
  }
}
