package services

import (
  "context"

  "github.com/google/uuid"

  "github.com/yachay-edu/yachay-backend/internal/clients/redis"
  "github.com/yachay-edu/yachay-backend/internal/logger"
  "github.com/yachay-edu/yachay-backend/internal/sse"
)

// EventNotifier pushes progress events onto the student's channel. Delivery is
// best effort; generation never fails because a notification did not go out.
type EventNotifier interface {
  Notify(ctx context.Context, studentID uuid.UUID, event sse.SSEEvent, data any)
}

type eventNotifier struct {
  log    *logger.Logger
  sseHub *sse.SSEHub
  bus    redis.SSEBus
}

// NewEventNotifier wires the in-process hub and, when available, the Redis
// fan-out bus. Pass bus=nil for single-instance deployments.
func NewEventNotifier(baseLog *logger.Logger, sseHub *sse.SSEHub, bus redis.SSEBus) EventNotifier {
  return &eventNotifier{
    log:    baseLog.With("service", "EventNotifier"),
    sseHub: sseHub,
    bus:    bus,
  }
}

func (n *eventNotifier) Notify(ctx context.Context, studentID uuid.UUID, event sse.SSEEvent, data any) {
  msg := sse.SSEMessage{
    Channel: studentID.String(),
    Event:   event,
    Data:    data,
  }
  if n.sseHub != nil {
    n.sseHub.Broadcast(msg)
  }
  if n.bus != nil {
    if err := n.bus.Publish(ctx, msg); err != nil {
      n.log.Warn("Failed to publish event to bus", "event", event, "error", err)
    }
  }
}

type noopNotifier struct{}

// NewNoopNotifier is for tests and tools that do not stream events.
func NewNoopNotifier() EventNotifier { return noopNotifier{} }

func (noopNotifier) Notify(context.Context, uuid.UUID, sse.SSEEvent, any) {}
