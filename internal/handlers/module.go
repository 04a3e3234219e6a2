package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/yachay-edu/yachay-backend/internal/services"
)

type ModuleHandler struct {
  events services.ModuleEventService
}

func NewModuleHandler(events services.ModuleEventService) *ModuleHandler {
  return &ModuleHandler{events: events}
}

// POST /api/modules/:id/edited
// Called by the authoring side after an instructor saves module content.
func (h *ModuleHandler) NotifyModuleEdited(c *gin.Context) {
  moduleID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid module id"})
    return
  }

  outcome, err := h.events.NotifyModuleEdited(c.Request.Context(), moduleID)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }

  c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}
