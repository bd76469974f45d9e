package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/events"
)

// activityKey is the Redis list holding the most recent domain events
// for the admin dashboard.
const activityKey = "servicedesk:activity"

// activityMaxEntries caps the feed length.
const activityMaxEntries = 100

// ActivityService logs domain events and maintains the capped
// recent-activity feed consumed by the dashboard.
type ActivityService struct {
	dispatcher events.Dispatcher
	redis      *redis.Client
	logger     *zap.Logger
}

// NewActivityService creates the service. The Redis client may be nil,
// in which case only logging happens.
func NewActivityService(dispatcher events.Dispatcher, redisClient *redis.Client, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		dispatcher: dispatcher,
		redis:      redisClient,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to all ticket events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketPriorityChanged,
		events.EventTicketEscalated,
		events.EventTicketCommentAdded,
	} {
		a.dispatcher.Subscribe(eventType, a.handleEvent)
	}
}

// Recent returns up to limit recent activity entries, newest first.
func (a *ActivityService) Recent(ctx context.Context, limit int) ([]events.Event, error) {
	if a.redis == nil {
		return nil, nil
	}
	if limit <= 0 || limit > activityMaxEntries {
		limit = activityMaxEntries
	}
	raw, err := a.redis.LRange(ctx, activityKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]events.Event, 0, len(raw))
	for _, item := range raw {
		var event events.Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			continue
		}
		entries = append(entries, event)
	}
	return entries, nil
}

func (a *ActivityService) handleEvent(ctx context.Context, event events.Event) error {
	a.logger.Info("ticket event",
		zap.String("type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("actor", event.Actor))

	if a.redis == nil {
		return nil
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pipe := a.redis.Pipeline()
	pipe.LPush(ctx, activityKey, encoded)
	pipe.LTrim(ctx, activityKey, 0, activityMaxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		a.logger.Warn("activity feed write failed", zap.Error(err))
	}
	return nil
}
