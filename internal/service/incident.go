package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shenikar/accident_alert_system/internal/feed"
	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -source=incident.go -destination=mocks/mock_incident.go -package=mocks

// IncidentRepository определяет контракт для работы с бд инцидентов
type IncidentRepository interface {
	Append(ctx context.Context, device *models.Device, draft *models.IncidentDraft) (*models.Incident, error)
	GetByID(ctx context.Context, id int64) (*models.Incident, error)
	ListIncidents(ctx context.Context, status *models.Status) ([]*models.Incident, error)
	GetIncidentFromCache(ctx context.Context, id int64) (*models.Incident, error)
	SetIncidentCache(ctx context.Context, incident *models.Incident) error
}

// NotificationRepository хранит попытки доставки оповещений
type NotificationRepository interface {
	SaveAttempt(ctx context.Context, attempt *models.NotificationAttempt) error
	ListAttempts(ctx context.Context, incidentID int64) ([]*models.NotificationAttempt, error)
}

// AlertDispatcher рассылает оповещения по серьезным инцидентам.
// MaybeDispatch must return without waiting for delivery.
type AlertDispatcher interface {
	MaybeDispatch(incident *models.Incident) bool
	SendTestAlert(ctx context.Context) (*models.NotificationAttempt, error)
}

// IncidentService определяет контракт для бизнес-логики приема инцидентов
type IncidentService interface {
	IngestIncident(ctx context.Context, raw *models.RawIncident) (*models.Incident, error)
	GetIncident(ctx context.Context, id int64) (*models.Incident, error)
	ListIncidents(ctx context.Context, status string) ([]*models.Incident, error)
	ListNotifications(ctx context.Context, incidentID int64) ([]*models.NotificationAttempt, error)
	SendTestAlert(ctx context.Context) (*models.NotificationAttempt, error)
}

const publishTimeout = 2 * time.Second

type incidentService struct {
	repo          IncidentRepository
	devices       DeviceRepository
	notifications NotificationRepository
	dispatcher    AlertDispatcher
	publisher     feed.Publisher
	logger        *logrus.Logger
	now           func() time.Time
}

func NewIncidentService(
	repo IncidentRepository,
	devices DeviceRepository,
	notifications NotificationRepository,
	dispatcher AlertDispatcher,
	publisher feed.Publisher,
	logger *logrus.Logger,
) IncidentService {
	if publisher == nil {
		publisher = feed.NopPublisher{}
	}
	return &incidentService{
		repo:          repo,
		devices:       devices,
		notifications: notifications,
		dispatcher:    dispatcher,
		publisher:     publisher,
		logger:        logger,
		now:           time.Now,
	}
}

// IngestIncident нормализует событие, находит или создает устройство и сохраняет инцидент.
// Only persistence failures are returned; alerts and the feed run after the commit.
func (s *incidentService) IngestIncident(ctx context.Context, raw *models.RawIncident) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":   "incident",
		"method":    "IngestIncident",
		"device_id": raw.DeviceID,
	})
	log.Info("Ingesting detection event")

	draft := NormalizeIncident(raw, s.now())
	if draft.TimestampFallback {
		log.WithField("raw_timestamp", raw.Timestamp).Warn("Failed to parse timestamp, using receive time")
	}
	if draft.SeverityFallback {
		log.WithField("raw_severity", raw.Severity).Warn("Unrecognized severity, defaulting to MINOR")
	}

	if draft.DeviceIdentifier == "" {
		log.Warn("Rejected detection event without device identifier")
		return nil, fmt.Errorf("service: %w", models.ErrMissingDeviceID)
	}

	device, err := s.devices.ResolveOrCreate(ctx, draft.DeviceIdentifier)
	if err != nil {
		log.WithError(err).Error("Failed to resolve device")
		return nil, fmt.Errorf("service: could not resolve device: %w", err)
	}

	incident, err := s.repo.Append(ctx, device, draft)
	if err != nil {
		log.WithError(err).Error("Failed to append incident in repository")
		return nil, fmt.Errorf("service: could not create incident: %w", err)
	}
	log = log.WithFields(logrus.Fields{"incident_id": incident.ID, "severity": incident.Severity})
	log.Info("Incident saved")

	if s.dispatcher.MaybeDispatch(incident) {
		log.Info("Serious incident, alerts dispatched")
	} else {
		log.Info("Non-serious incident, alerts not triggered")
	}

	s.publish(ctx, log, incident)
	return incident, nil
}

// publish отправляет событие в ленту.
// Detached from request cancellation, bounded by publishTimeout.
func (s *incidentService) publish(ctx context.Context, log *logrus.Entry, incident *models.Incident) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, feed.NewIncidentEvent(incident)); err != nil {
		log.WithError(err).Warn("Failed to publish incident event")
	}
}

// GetIncident получает инцидент по ID
func (s *incidentService) GetIncident(ctx context.Context, id int64) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})
	log.Info("Fetching incident by ID")

	cached, err := s.repo.GetIncidentFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read incident cache")
	}
	if cached != nil {
		log.Debug("Incident served from cache")
		return cached, nil
	}

	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to get incident in repository")
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}

	if err := s.repo.SetIncidentCache(ctx, incident); err != nil {
		log.WithError(err).Warn("Failed to cache incident")
	}
	log.Info("Incident fetched successfully")
	return incident, nil
}

// ListIncidents возвращает инциденты, опционально с фильтром по статусу
func (s *incidentService) ListIncidents(ctx context.Context, status string) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListIncidents",
		"status":  status,
	})
	log.Info("Listing incidents")

	var filter *models.Status
	if status != "" {
		parsed, err := models.ParseStatus(status)
		if err != nil {
			log.WithError(err).Warn("Invalid status filter")
			return nil, fmt.Errorf("service: %q: %w", status, err)
		}
		filter = &parsed
	}

	incidents, err := s.repo.ListIncidents(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}
	log.WithField("count", len(incidents)).Info("Incidents listed successfully")
	return incidents, nil
}

// ListNotifications возвращает попытки оповещения по инциденту
func (s *incidentService) ListNotifications(ctx context.Context, incidentID int64) ([]*models.NotificationAttempt, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "ListNotifications",
		"incident_id": incidentID,
	})

	if _, err := s.repo.GetByID(ctx, incidentID); err != nil {
		log.WithError(err).Warn("Attempted to list notifications of a non-existent incident")
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}

	attempts, err := s.notifications.ListAttempts(ctx, incidentID)
	if err != nil {
		log.WithError(err).Error("Failed to list notification attempts")
		return nil, fmt.Errorf("service: could not list notifications: %w", err)
	}
	return attempts, nil
}

// SendTestAlert отправляет тестовое сообщение в медицинский канал
func (s *incidentService) SendTestAlert(ctx context.Context) (*models.NotificationAttempt, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "SendTestAlert",
	})
	log.Info("Sending test alert")

	attempt, err := s.dispatcher.SendTestAlert(ctx)
	if err != nil {
		log.WithError(err).Error("Test alert failed")
		return attempt, fmt.Errorf("service: test alert failed: %w", err)
	}
	log.Info("Test alert delivered")
	return attempt, nil
}
