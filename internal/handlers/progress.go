package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/yachay-edu/yachay-backend/internal/apperr"
  "github.com/yachay-edu/yachay-backend/internal/services"
)

type ProgressHandler struct {
  svc services.QueueMaintenanceService
}

func NewProgressHandler(svc services.QueueMaintenanceService) *ProgressHandler {
  return &ProgressHandler{svc: svc}
}

// POST /api/virtual-topics/:id/progress
func (h *ProgressHandler) ReportTopicProgress(c *gin.Context) {
  topicID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid virtual topic id"})
    return
  }

  var req struct {
    Progress *float64 `json:"progress"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.Progress == nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "progress is required"})
    return
  }

  outcome, err := h.svc.OnProgress(c.Request.Context(), topicID, *req.Progress)
  if err != nil {
    switch {
    case errors.Is(err, apperr.ErrNotFound):
      c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
    case errors.Is(err, apperr.ErrInvalidState):
      c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
    default:
      c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    }
    return
  }

  c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}
