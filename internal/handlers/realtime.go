package handlers

import (
  "net/http"
  "sync"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/sse"
)

type RealtimeHandler struct {
  Log *logger.Logger
  Hub *sse.SSEHub

  mu      sync.RWMutex
  clients map[uuid.UUID]*sse.SSEClient // key: client ID handed back to the caller
}

func NewRealtimeHandler(log *logger.Logger, hub *sse.SSEHub) *RealtimeHandler {
  return &RealtimeHandler{
    Log:     log,
    Hub:     hub,
    clients: make(map[uuid.UUID]*sse.SSEClient),
  }
}

// GET /sse/stream?student_id=...
// Opens the event stream and subscribes it to the student's channel, where
// generation progress, topic unlocks and sync notifications arrive.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
  studentID, err := uuid.Parse(c.Query("student_id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
    return
  }

  client := h.Hub.NewSSEClient(studentID)
  client.Logger = h.Log.With("SSEClientID", client.ID)

  h.mu.Lock()
  h.clients[client.ID] = client
  h.mu.Unlock()

  h.Log.Info("SSEStream open", "student_id", studentID.String(), "client_id", client.ID.String())
  h.Hub.AddChannel(client, studentID.String())

  h.Hub.ServeHTTP(c.Writer, c.Request, client)

  h.mu.Lock()
  delete(h.clients, client.ID)
  h.mu.Unlock()
  h.Hub.CloseClient(client)
}

// POST /sse/subscribe
func (h *RealtimeHandler) SSESubscribe(c *gin.Context) {
  var req struct {
    ClientID uuid.UUID `json:"client_id"`
    Channel  string    `json:"channel"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
    return
  }

  h.mu.RLock()
  client, exists := h.clients[req.ClientID]
  h.mu.RUnlock()
  if !exists {
    c.JSON(http.StatusConflict, gin.H{"error": "no active SSE connection for this client"})
    return
  }

  h.Hub.AddChannel(client, req.Channel)
  c.JSON(http.StatusOK, gin.H{"message": "subscribed", "channel": req.Channel})
}

// POST /sse/unsubscribe
func (h *RealtimeHandler) SSEUnsubscribe(c *gin.Context) {
  var req struct {
    ClientID uuid.UUID `json:"client_id"`
    Channel  string    `json:"channel"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
    return
  }

  h.mu.RLock()
  client, exists := h.clients[req.ClientID]
  h.mu.RUnlock()
  if !exists {
    c.JSON(http.StatusConflict, gin.H{"error": "no active SSE connection for this client"})
    return
  }

  h.Hub.RemoveChannel(client, req.Channel)
  c.JSON(http.StatusOK, gin.H{"message": "unsubscribed", "channel": req.Channel})
}
