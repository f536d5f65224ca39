package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -source=snapshot.go -destination=mocks/mock_snapshot.go -package=mocks

// SnapshotStore - внешнее хранилище снимков; returns the public URI of the object
type SnapshotStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)
}

// SnapshotService определяет контракт для загрузки снимков происшествий
type SnapshotService interface {
	UploadSnapshot(ctx context.Context, deviceID, filename, contentType string, r io.Reader, size int64) (string, error)
}

type snapshotService struct {
	store  SnapshotStore
	logger *logrus.Logger
	now    func() time.Time
}

func NewSnapshotService(store SnapshotStore, logger *logrus.Logger) SnapshotService {
	return &snapshotService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// UploadSnapshot сохраняет снимок и возвращает ссылку на него
func (s *snapshotService) UploadSnapshot(ctx context.Context, deviceID, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := snapshotKey(deviceID, filename, s.now())
	log := s.logger.WithFields(logrus.Fields{
		"service": "snapshot",
		"method":  "UploadSnapshot",
		"key":     key,
		"size":    size,
	})

	uri, err := s.store.Put(ctx, key, contentType, r, size)
	if err != nil {
		log.WithError(err).Error("Failed to store snapshot")
		return "", fmt.Errorf("service: could not store snapshot: %w", err)
	}
	log.WithField("snapshot_ref", uri).Info("Snapshot stored")
	return uri, nil
}

func snapshotKey(deviceID, filename string, now time.Time) string {
	deviceID = strings.Trim(strings.TrimSpace(deviceID), "/")
	if deviceID == "" {
		deviceID = "unknown"
	}
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s/%s/%s%s", deviceID, now.UTC().Format("2006/01/02"), uuid.New().String(), ext)
}
