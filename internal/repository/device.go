package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/shenikar/accident_alert_system/internal/service"
)

const deviceColumns = `id, identifier, name, latitude, longitude, active, created_at`

type DeviceRepository struct {
	db *pgxpool.Pool
}

func NewDeviceRepository(db *pgxpool.Pool) service.DeviceRepository {
	return &DeviceRepository{db: db}
}

// ResolveOrCreate возвращает устройство по идентификатору, создавая его при первом появлении.
// The insert relies on the unique constraint: a losing concurrent insert
// does nothing and the row is fetched instead.
func (r *DeviceRepository) ResolveOrCreate(ctx context.Context, identifier string) (*models.Device, error) {
	insert := `
		INSERT INTO devices (identifier, name, active)
		VALUES ($1, $1, TRUE)
		ON CONFLICT (identifier) DO NOTHING
		RETURNING ` + deviceColumns + `;
	`
	device, err := scanDevice(r.db.QueryRow(ctx, insert, identifier))
	if err == nil {
		return device, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to insert device: %w", err)
	}

	// Устройство уже существует (или было создано параллельным запросом)
	device, err = r.getByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device after conflict: %w", err)
	}
	return device, nil
}

// ListDevices возвращает все устройства в порядке создания
func (r *DeviceRepository) ListDevices(ctx context.Context) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY id;`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	devices := make([]*models.Device, 0)
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return devices, nil
}

// SetActive переключает флаг активности устройства
func (r *DeviceRepository) SetActive(ctx context.Context, identifier string, active bool) (*models.Device, error) {
	query := `
		UPDATE devices SET active = $2
		WHERE identifier = $1
		RETURNING ` + deviceColumns + `;
	`
	device, err := scanDevice(r.db.QueryRow(ctx, query, identifier, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("device %q: %w", identifier, models.ErrDeviceNotFound)
		}
		return nil, fmt.Errorf("failed to update device: %w", err)
	}
	return device, nil
}

func (r *DeviceRepository) getByIdentifier(ctx context.Context, identifier string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE identifier = $1;`
	device, err := scanDevice(r.db.QueryRow(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("device %q: %w", identifier, models.ErrDeviceNotFound)
		}
		return nil, err
	}
	return device, nil
}

func scanDevice(row pgx.Row) (*models.Device, error) {
	device := &models.Device{}
	err := row.Scan(
		&device.ID,
		&device.Identifier,
		&device.Name,
		&device.Latitude,
		&device.Longitude,
		&device.Active,
		&device.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return device, nil
}
