package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/shenikar/accident_alert_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestDeviceService(t *testing.T) (DeviceService, *mocks.MockDeviceRepository) {
	ctrl := gomock.NewController(t)
	repoMock := mocks.NewMockDeviceRepository(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	return NewDeviceService(repoMock, logger), repoMock
}

func TestListDevices(t *testing.T) {
	service, repoMock := newTestDeviceService(t)
	ctx := context.Background()
	expected := []*models.Device{{ID: 1, Identifier: "cam_01"}, {ID: 2, Identifier: "cam_02"}}

	repoMock.EXPECT().ListDevices(ctx).Return(expected, nil).Times(1)

	devices, err := service.ListDevices(ctx)

	require.NoError(t, err)
	assert.Equal(t, expected, devices)
}

func TestListDevices_Error(t *testing.T) {
	service, repoMock := newTestDeviceService(t)
	ctx := context.Background()

	repoMock.EXPECT().ListDevices(ctx).Return(nil, errors.New("db down")).Times(1)

	devices, err := service.ListDevices(ctx)

	require.Error(t, err)
	assert.Nil(t, devices)
	assert.ErrorContains(t, err, "could not list devices")
}

func TestSetDeviceActive(t *testing.T) {
	service, repoMock := newTestDeviceService(t)
	ctx := context.Background()
	expected := &models.Device{ID: 1, Identifier: "cam_01", Active: false}

	repoMock.EXPECT().SetActive(ctx, "cam_01", false).Return(expected, nil).Times(1)

	device, err := service.SetDeviceActive(ctx, "cam_01", false)

	require.NoError(t, err)
	assert.Equal(t, expected, device)
}

func TestSetDeviceActive_NotFound(t *testing.T) {
	service, repoMock := newTestDeviceService(t)
	ctx := context.Background()

	repoMock.EXPECT().SetActive(ctx, "ghost", true).Return(nil, models.ErrDeviceNotFound).Times(1)

	device, err := service.SetDeviceActive(ctx, "ghost", true)

	require.Error(t, err)
	assert.Nil(t, device)
	assert.ErrorIs(t, err, models.ErrDeviceNotFound)
}
