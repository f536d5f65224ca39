package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/accident_alert_system/internal/models"
)

//go:generate mockgen -source=publisher.go -destination=mocks/mock_publisher.go -package=mocks

const (
	incidentQueueKey = "incident_events"

	EventIncidentDetected = "incident.detected"
)

// IncidentEvent - событие ленты инцидентов для внешних интеграций
type IncidentEvent struct {
	EventID    uuid.UUID        `json:"event_id"`
	Type       string           `json:"type"`
	Incident   *models.Incident `json:"incident"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewIncidentEvent(incident *models.Incident) IncidentEvent {
	return IncidentEvent{
		EventID:    uuid.New(),
		Type:       EventIncidentDetected,
		Incident:   incident,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher - интерфейс для публикации событий ленты
type Publisher interface {
	Publish(ctx context.Context, event IncidentEvent) error
}

// NopPublisher используется, когда лента отключена
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, IncidentEvent) error { return nil }

// RedisPublisher - реализация Publisher, использующая список Redis как очередь
type RedisPublisher struct {
	redisClient *redis.Client
}

// NewRedisPublisher создает новый RedisPublisher
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		redisClient: client,
	}
}

// Publish публикует событие в очередь Redis
func (p *RedisPublisher) Publish(ctx context.Context, event IncidentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal incident event: %w", err)
	}

	// LPUSH добавляет в голову списка, воркер забирает с хвоста через BRPOP
	if err := p.redisClient.LPush(ctx, incidentQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish incident event to Redis: %w", err)
	}
	return nil
}
