package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/yachay-edu/yachay-backend/internal/handlers"
)

type RouterConfig struct {
  VirtualModuleHandler *handlers.VirtualModuleHandler
  ProgressHandler      *handlers.ProgressHandler
  ModuleHandler        *handlers.ModuleHandler
  RealtimeHandler      *handlers.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  // SSE
  router.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
  router.POST("/sse/subscribe", cfg.RealtimeHandler.SSESubscribe)
  router.POST("/sse/unsubscribe", cfg.RealtimeHandler.SSEUnsubscribe)

  api := router.Group("/api")
  {
    // Virtual module lifecycle
    api.POST("/students/:studentID/modules/:moduleID/virtual", cfg.VirtualModuleHandler.GenerateVirtualModule)
    api.POST("/students/:studentID/modules/:moduleID/virtual/enqueue", cfg.VirtualModuleHandler.EnqueueGeneration)
    api.GET("/students/:studentID/modules/:moduleID/virtual", cfg.VirtualModuleHandler.GetVirtualModule)
    // Progress + queue maintenance
    api.POST("/virtual-topics/:id/progress", cfg.ProgressHandler.ReportTopicProgress)
    api.GET("/virtual-topics/:id/balance", cfg.VirtualModuleHandler.CheckTopicBalance)
    // Authoring-side notifications
    api.POST("/modules/:id/edited", cfg.ModuleHandler.NotifyModuleEdited)
  }

  return router
}
