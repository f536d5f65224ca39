package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shenikar/accident_alert_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestSnapshotService(t *testing.T) (*snapshotService, *mocks.MockSnapshotStore) {
	ctrl := gomock.NewController(t)
	storeMock := mocks.NewMockSnapshotStore(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	svc := NewSnapshotService(storeMock, logger).(*snapshotService)
	svc.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, storeMock
}

func TestUploadSnapshot(t *testing.T) {
	service, storeMock := newTestSnapshotService(t)
	ctx := context.Background()
	body := strings.NewReader("jpegdata")

	storeMock.EXPECT().
		Put(ctx, gomock.Any(), "image/jpeg", gomock.Any(), int64(8)).
		DoAndReturn(func(_ context.Context, key, _ string, r io.Reader, _ int64) (string, error) {
			assert.True(t, strings.HasPrefix(key, "cam_07/2024/01/02/"), key)
			assert.True(t, strings.HasSuffix(key, ".png"), key)
			data, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, "jpegdata", string(data))
			return "http://minio/snapshots/" + key, nil
		}).Times(1)

	uri, err := service.UploadSnapshot(ctx, "cam_07", "frame.PNG", "image/jpeg", body, 8)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "http://minio/snapshots/cam_07/"))
}

func TestUploadSnapshot_StoreError(t *testing.T) {
	service, storeMock := newTestSnapshotService(t)
	ctx := context.Background()

	storeMock.EXPECT().Put(ctx, gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("bucket missing")).Times(1)

	uri, err := service.UploadSnapshot(ctx, "", "frame", "", strings.NewReader("x"), 1)

	require.Error(t, err)
	assert.Empty(t, uri)
	assert.ErrorContains(t, err, "could not store snapshot")
}

func TestSnapshotKey(t *testing.T) {
	now := time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)

	key := snapshotKey("", "", now)
	assert.True(t, strings.HasPrefix(key, "unknown/2024/12/31/"), key)
	assert.True(t, strings.HasSuffix(key, ".jpg"), key)

	key = snapshotKey("/cam_03/", "shot.jpeg", now)
	assert.True(t, strings.HasPrefix(key, "cam_03/2024/12/31/"), key)
	assert.True(t, strings.HasSuffix(key, ".jpeg"), key)
}
