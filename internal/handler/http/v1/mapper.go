package v1

import "github.com/shenikar/accident_alert_system/internal/models"

// DTOToRawIncident преобразует запрос в необработанное событие
func DTOToRawIncident(dto IngestIncidentRequest) *models.RawIncident {
	raw := &models.RawIncident{
		DeviceID:      dto.DeviceID,
		Timestamp:     dto.Timestamp,
		Severity:      dto.Severity,
		VictimCount:   dto.VictimCount,
		SnapshotRef:   dto.SnapshotRef,
		InjurySummary: dto.InjurySummary,
	}
	if dto.Location != nil {
		raw.Location = &models.Location{Lat: dto.Location.Lat, Lng: dto.Location.Lng}
	}
	if dto.InjuryReport != nil {
		raw.InjuryReport = dto.InjuryReport
	}
	return raw
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:                model.ID,
		DeviceID:          model.DeviceIdentifier,
		DeviceName:        model.DeviceName,
		Severity:          string(model.Severity),
		VictimCount:       model.VictimCount,
		Status:            string(model.Status),
		Timestamp:         model.Timestamp,
		Location:          LocationDTO{Lat: model.Location.Lat, Lng: model.Location.Lng},
		SnapshotRef:       model.SnapshotRef,
		InjuryReport:      model.InjuryReport,
		InjurySummary:     model.InjurySummary,
		TimestampFallback: model.TimestampFallback,
		SeverityFallback:  model.SeverityFallback,
		RawSeverity:       model.RawSeverity,
		CreatedAt:         model.CreatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

func ModelToDeviceResponse(model *models.Device) *DeviceResponse {
	return &DeviceResponse{
		ID:         model.ID,
		Identifier: model.Identifier,
		Name:       model.Name,
		Latitude:   model.Latitude,
		Longitude:  model.Longitude,
		Active:     model.Active,
		CreatedAt:  model.CreatedAt,
	}
}

func ModelsToDeviceResponses(models []*models.Device) []*DeviceResponse {
	responses := make([]*DeviceResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToDeviceResponse(model)
	}
	return responses
}

func ModelToAttemptResponse(model *models.NotificationAttempt) *NotificationAttemptResponse {
	return &NotificationAttemptResponse{
		ID:         model.ID,
		IncidentID: model.IncidentID,
		Channel:    string(model.Channel),
		Recipient:  model.Recipient,
		Body:       model.Body,
		Outcome:    string(model.Outcome),
		Error:      model.Error,
		StartedAt:  model.StartedAt,
		FinishedAt: model.FinishedAt,
	}
}

func ModelsToAttemptResponses(models []*models.NotificationAttempt) []*NotificationAttemptResponse {
	responses := make([]*NotificationAttemptResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToAttemptResponse(model)
	}
	return responses
}
