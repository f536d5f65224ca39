package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/shenikar/accident_alert_system/internal/service"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) service.NotificationRepository {
	return &NotificationRepository{db: db}
}

// SaveAttempt сохраняет результат попытки оповещения
func (r *NotificationRepository) SaveAttempt(ctx context.Context, attempt *models.NotificationAttempt) error {
	query := `
		INSERT INTO notification_attempts (id, incident_id, channel, recipient, body, outcome, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := r.db.Exec(ctx, query,
		attempt.ID,
		attempt.IncidentID,
		string(attempt.Channel),
		attempt.Recipient,
		attempt.Body,
		string(attempt.Outcome),
		nullString(attempt.Error),
		attempt.StartedAt,
		attempt.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save notification attempt: %w", err)
	}
	return nil
}

// ListAttempts возвращает попытки оповещения по инциденту
func (r *NotificationRepository) ListAttempts(ctx context.Context, incidentID int64) ([]*models.NotificationAttempt, error) {
	query := `
		SELECT id, incident_id, channel, recipient, body, outcome, error, started_at, finished_at
		FROM notification_attempts
		WHERE incident_id = $1
		ORDER BY started_at, channel;
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*models.NotificationAttempt, 0)
	for rows.Next() {
		var (
			attempt = &models.NotificationAttempt{}
			channel string
			outcome string
			errText *string
		)
		if err := rows.Scan(
			&attempt.ID,
			&attempt.IncidentID,
			&channel,
			&attempt.Recipient,
			&attempt.Body,
			&outcome,
			&errText,
			&attempt.StartedAt,
			&attempt.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification attempt row: %w", err)
		}
		attempt.Channel = models.Channel(channel)
		attempt.Outcome = models.Outcome(outcome)
		attempt.Error = derefString(errText)
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return attempts, nil
}
