package service

import (
	"context"
	"fmt"

	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -source=device.go -destination=mocks/mock_device.go -package=mocks

// DeviceRepository - реестр устройств.
// ResolveOrCreate must be linearizable per identifier: concurrent first
// sightings of one identifier yield exactly one device.
type DeviceRepository interface {
	ResolveOrCreate(ctx context.Context, identifier string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]*models.Device, error)
	SetActive(ctx context.Context, identifier string, active bool) (*models.Device, error)
}

// DeviceService определяет контракт для управления устройствами
type DeviceService interface {
	ListDevices(ctx context.Context) ([]*models.Device, error)
	SetDeviceActive(ctx context.Context, identifier string, active bool) (*models.Device, error)
}

type deviceService struct {
	repo   DeviceRepository
	logger *logrus.Logger
}

func NewDeviceService(repo DeviceRepository, logger *logrus.Logger) DeviceService {
	return &deviceService{
		repo:   repo,
		logger: logger,
	}
}

func (s *deviceService) ListDevices(ctx context.Context) ([]*models.Device, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "device",
		"method":  "ListDevices",
	})

	devices, err := s.repo.ListDevices(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list devices from repository")
		return nil, fmt.Errorf("service: could not list devices: %w", err)
	}
	log.WithField("count", len(devices)).Info("Devices listed successfully")
	return devices, nil
}

// SetDeviceActive включает или выключает устройство
func (s *deviceService) SetDeviceActive(ctx context.Context, identifier string, active bool) (*models.Device, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":   "device",
		"method":    "SetDeviceActive",
		"device_id": identifier,
		"active":    active,
	})
	log.Info("Updating device active flag")

	device, err := s.repo.SetActive(ctx, identifier, active)
	if err != nil {
		log.WithError(err).Warn("Failed to update device")
		return nil, fmt.Errorf("service: could not update device: %w", err)
	}
	log.Info("Device updated successfully")
	return device, nil
}
