package handlers

import (
  "context"
  "errors"
  "net/http"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/yachay-edu/yachay-backend/internal/apperr"
  "github.com/yachay-edu/yachay-backend/internal/services"
  "github.com/yachay-edu/yachay-backend/internal/types"
)

// fastPathTimeout caps the synchronous generation path; anything slower
// belongs on the task queue.
const fastPathTimeout = 25 * time.Second

type VirtualModuleHandler struct {
  generator services.ModuleGenerationService
  queue     services.TaskQueueService
  query     services.VirtualModuleQueryService
}

func NewVirtualModuleHandler(
  generator services.ModuleGenerationService,
  queue services.TaskQueueService,
  query services.VirtualModuleQueryService,
) *VirtualModuleHandler {
  return &VirtualModuleHandler{generator: generator, queue: queue, query: query}
}

// POST /api/students/:studentID/modules/:moduleID/virtual
// Synchronous fast path: generate (or resume) the virtual module within the
// request's time budget.
func (h *VirtualModuleHandler) GenerateVirtualModule(c *gin.Context) {
  studentID, err := uuid.Parse(c.Param("studentID"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
    return
  }
  moduleID, err := uuid.Parse(c.Param("moduleID"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid module id"})
    return
  }

  var req struct {
    StudyPlanID      *uuid.UUID `json:"study_plan_id"`
    InitialBatchSize int        `json:"initial_batch_size"`
  }
  // Body is optional on this endpoint.
  _ = c.ShouldBindJSON(&req)

  opts := services.GenerateOptions{InitialBatchSize: req.InitialBatchSize}
  if req.StudyPlanID != nil {
    opts.StudyPlanID = *req.StudyPlanID
  }

  ctx, cancel := context.WithTimeout(c.Request.Context(), fastPathTimeout)
  defer cancel()

  vmod, err := h.generator.GenerateModule(ctx, studentID, moduleID, opts)
  if err != nil {
    switch {
    case errors.Is(err, apperr.ErrNotFound):
      c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
    case errors.Is(err, context.DeadlineExceeded):
      // Partial progress is durable; hand the rest to the queue.
      c.JSON(http.StatusAccepted, gin.H{"status": "generating", "virtual_module": vmod})
    default:
      c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    }
    return
  }

  c.JSON(http.StatusOK, gin.H{"virtual_module": vmod})
}

// POST /api/students/:studentID/modules/:moduleID/virtual/enqueue
// Deferred path: register a generation task for the background worker.
func (h *VirtualModuleHandler) EnqueueGeneration(c *gin.Context) {
  studentID, err := uuid.Parse(c.Param("studentID"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
    return
  }
  moduleID, err := uuid.Parse(c.Param("moduleID"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid module id"})
    return
  }

  var req struct {
    Priority int `json:"priority"`
  }
  _ = c.ShouldBindJSON(&req)

  task, err := h.queue.Enqueue(c.Request.Context(), services.EnqueueRequest{
    StudentID: studentID,
    ModuleID:  moduleID,
    TaskType:  types.TaskTypeGenerate,
    Priority:  req.Priority,
  })
  if err != nil {
    if errors.Is(err, apperr.ErrConflict) {
      c.JSON(http.StatusConflict, gin.H{"error": "a generation task is already in flight for this module"})
      return
    }
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }

  c.JSON(http.StatusAccepted, gin.H{"task": task})
}

// GET /api/students/:studentID/modules/:moduleID/virtual
func (h *VirtualModuleHandler) GetVirtualModule(c *gin.Context) {
  studentID, err := uuid.Parse(c.Param("studentID"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
    return
  }
  moduleID, err := uuid.Parse(c.Param("moduleID"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid module id"})
    return
  }

  view, err := h.query.GetView(c.Request.Context(), studentID, moduleID)
  if err != nil {
    if errors.Is(err, apperr.ErrNotFound) {
      c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
      return
    }
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }

  c.JSON(http.StatusOK, gin.H{"view": view})
}

// GET /api/virtual-topics/:id/balance
func (h *VirtualModuleHandler) CheckTopicBalance(c *gin.Context) {
  topicID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid virtual topic id"})
    return
  }

  report, err := h.query.CheckTopicBalance(c.Request.Context(), topicID)
  if err != nil {
    if errors.Is(err, apperr.ErrNotFound) {
      c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
      return
    }
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }

  c.JSON(http.StatusOK, gin.H{"balance": report})
}
