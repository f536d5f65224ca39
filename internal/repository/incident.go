package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/shenikar/accident_alert_system/internal/service"
)

const incidentSelect = `
	SELECT
		i.id,
		i.device_id,
		d.identifier,
		d.name,
		i.occurred_at,
		i.timestamp_fallback,
		i.severity,
		i.raw_severity,
		i.severity_fallback,
		i.victim_count,
		i.injury_report,
		i.injury_summary,
		i.status,
		i.location_lat,
		i.location_lng,
		i.snapshot_ref,
		i.created_at
	FROM incidents i
	JOIN devices d ON d.id = i.device_id
`

type IncidentRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	cacheTTL    time.Duration
}

// NewIncidentRepository создает репозиторий инцидентов; redisClient may be nil to disable the cache
func NewIncidentRepository(db *pgxpool.Pool, redisClient *redis.Client, cacheTTL time.Duration) service.IncidentRepository {
	return &IncidentRepository{
		db:          db,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

// Append создает новую запись об инциденте в бд.
// A single INSERT, so readers never observe a partial incident.
func (r *IncidentRepository) Append(ctx context.Context, device *models.Device, draft *models.IncidentDraft) (*models.Incident, error) {
	incident := models.NewIncident(device, draft)
	query := `
		INSERT INTO incidents (
			device_id, occurred_at, timestamp_fallback, severity, raw_severity, severity_fallback,
			victim_count, injury_report, injury_summary, status, location_lat, location_lng, snapshot_ref
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at;
	`
	err := r.db.QueryRow(ctx, query,
		incident.DeviceID,
		incident.Timestamp,
		incident.TimestampFallback,
		string(incident.Severity),
		incident.RawSeverity,
		incident.SeverityFallback,
		incident.VictimCount,
		[]byte(incident.InjuryReport),
		nullString(incident.InjurySummary),
		string(incident.Status),
		incident.Location.Lat,
		incident.Location.Lng,
		nullString(incident.SnapshotRef),
	).Scan(&incident.ID, &incident.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}
	return incident, nil
}

// GetByID возвращает инцидент по его идентификатору
func (r *IncidentRepository) GetByID(ctx context.Context, id int64) (*models.Incident, error) {
	incident, err := scanIncident(r.db.QueryRow(ctx, incidentSelect+` WHERE i.id = $1;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %d: %w", id, models.ErrIncidentNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// ListIncidents возвращает инциденты по возрастанию id, optionally filtered by status
func (r *IncidentRepository) ListIncidents(ctx context.Context, status *models.Status) ([]*models.Incident, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		rows, err = r.db.Query(ctx, incidentSelect+` WHERE i.status = $1 ORDER BY i.id;`, string(*status))
	} else {
		rows, err = r.db.Query(ctx, incidentSelect+` ORDER BY i.id;`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, nil
}

// GetIncidentFromCache пытается получить инцидент из Redis
func (r *IncidentRepository) GetIncidentFromCache(ctx context.Context, id int64) (*models.Incident, error) {
	if r.redisClient == nil {
		return nil, nil
	}
	val, err := r.redisClient.Get(ctx, incidentCacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get incident from cache: %w", err)
	}

	incident := &models.Incident{}
	if err := json.Unmarshal(val, incident); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident from cache: %w", err)
	}
	return incident, nil
}

// SetIncidentCache сохраняет инцидент в Redis. Incidents are immutable, so entries are never invalidated.
func (r *IncidentRepository) SetIncidentCache(ctx context.Context, incident *models.Incident) error {
	if r.redisClient == nil {
		return nil
	}
	val, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident for cache: %w", err)
	}
	if err := r.redisClient.Set(ctx, incidentCacheKey(incident.ID), val, r.cacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set incident in cache: %w", err)
	}
	return nil
}

func incidentCacheKey(id int64) string {
	return fmt.Sprintf("incident:%d", id)
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	var (
		incident    = &models.Incident{}
		severity    string
		status      string
		report      []byte
		summary     *string
		snapshotRef *string
	)
	err := row.Scan(
		&incident.ID,
		&incident.DeviceID,
		&incident.DeviceIdentifier,
		&incident.DeviceName,
		&incident.Timestamp,
		&incident.TimestampFallback,
		&severity,
		&incident.RawSeverity,
		&incident.SeverityFallback,
		&incident.VictimCount,
		&report,
		&summary,
		&status,
		&incident.Location.Lat,
		&incident.Location.Lng,
		&snapshotRef,
		&incident.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	incident.Severity = models.Severity(severity)
	incident.Status = models.Status(status)
	incident.InjuryReport = json.RawMessage(report)
	incident.InjurySummary = derefString(summary)
	incident.SnapshotRef = derefString(snapshotRef)
	incident.Timestamp = incident.Timestamp.UTC()
	return incident, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
