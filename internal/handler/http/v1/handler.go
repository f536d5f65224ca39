package v1

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shenikar/accident_alert_system/internal/config"
	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/shenikar/accident_alert_system/internal/service"
	"github.com/sirupsen/logrus"
)

const maxSnapshotSize = 20 << 20

type Handler struct {
	incidentService service.IncidentService
	deviceService   service.DeviceService
	snapshotService service.SnapshotService
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

// NewHandler создает обработчики API; snapshotService may be nil when snapshot storage is not configured
func NewHandler(
	incidentService service.IncidentService,
	deviceService service.DeviceService,
	snapshotService service.SnapshotService,
	logger *logrus.Logger,
	cfg *config.Config,
) *Handler {
	return &Handler{
		incidentService: incidentService,
		deviceService:   deviceService,
		snapshotService: snapshotService,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// @Summary Ingest a detection event
// @Description Normalize and persist an accident detection event. MAJOR and CRITICAL incidents trigger police and hospital alerts after the response. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param incident body IngestIncidentRequest true "Detection event"
// @Success 201 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body or missing device_id"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/ingest [post]
func (h *Handler) ingestIncident(c *gin.Context) {
	var input IngestIncidentRequest
	log := h.logger.WithField("method", "ingestIncident")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	input.DeviceID = strings.TrimSpace(input.DeviceID)
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incident, err := h.incidentService.IngestIncident(c.Request.Context(), DTOToRawIncident(input))
	if err != nil {
		if errors.Is(err, models.ErrMissingDeviceID) {
			log.WithError(err).Warn("Rejected event without device identifier")
			c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrMissingDeviceID.Error()})
			return
		}
		log.WithError(err).Error("Failed to ingest incident in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, ModelToIncidentResponse(incident))
}

// @Summary Get a list of incidents
// @Description Get all incidents ordered by id, optionally filtered by status. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Status filter" Enums(DETECTED, ACKNOWLEDGED, RESOLVED)
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid status"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	status := c.Query("status")
	log := h.logger.WithField("method", "listIncidents").WithField("status", status)

	incidents, err := h.incidentService.ListIncidents(c.Request.Context(), status)
	if err != nil {
		if errors.Is(err, models.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		log.WithError(err).Error("Failed to list incidents from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident by ID
// @Description Get a single incident by its ID. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		h.respondIncidentError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary List notification attempts of an incident
// @Description Get the recorded alert deliveries (police, hospital) of an incident. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Incident ID"
// @Success 200 {array} NotificationAttemptResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/notifications [get]
func (h *Handler) listNotifications(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	log := h.logger.WithField("method", "listNotifications").WithField("id", id)

	attempts, err := h.incidentService.ListNotifications(c.Request.Context(), id)
	if err != nil {
		h.respondIncidentError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToAttemptResponses(attempts))
}

// @Summary Get a list of devices
// @Description Get all registered devices ordered by id. Requires API key.
// @Tags Devices
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} DeviceResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /devices [get]
func (h *Handler) listDevices(c *gin.Context) {
	log := h.logger.WithField("method", "listDevices")

	devices, err := h.deviceService.ListDevices(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list devices from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ModelsToDeviceResponses(devices))
}

// @Summary Activate or deactivate a device
// @Description Flip the active flag of a device. Requires API key.
// @Tags Devices
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param identifier path string true "Device identifier"
// @Param device body SetDeviceActiveRequest true "Active flag"
// @Success 200 {object} DeviceResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Device not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /devices/{identifier} [patch]
func (h *Handler) setDeviceActive(c *gin.Context) {
	identifier := c.Param("identifier")
	log := h.logger.WithField("method", "setDeviceActive").WithField("identifier", identifier)

	var input SetDeviceActiveRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := h.deviceService.SetDeviceActive(c.Request.Context(), identifier, *input.Active)
	if err != nil {
		if errors.Is(err, models.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		log.WithError(err).Error("Failed to update device in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ModelToDeviceResponse(device))
}

// @Summary Upload a snapshot
// @Description Store an accident snapshot and return its URI for use as snapshot_ref. Requires API key.
// @Tags Snapshots
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param snapshot formData file true "Snapshot image"
// @Param device_id formData string false "Device identifier"
// @Success 201 {object} SnapshotResponse
// @Failure 400 {object} map[string]string "Missing or oversized snapshot"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /snapshots [post]
func (h *Handler) uploadSnapshot(c *gin.Context) {
	log := h.logger.WithField("method", "uploadSnapshot")

	fileHeader, err := c.FormFile("snapshot")
	if err != nil {
		log.WithError(err).Warn("Snapshot file missing")
		c.JSON(http.StatusBadRequest, gin.H{"error": "snapshot file is required"})
		return
	}
	if fileHeader.Size > maxSnapshotSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "snapshot is too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.WithError(err).Error("Failed to open uploaded snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	defer file.Close()

	uri, err := h.snapshotService.UploadSnapshot(
		c.Request.Context(),
		c.PostForm("device_id"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
		fileHeader.Size,
	)
	if err != nil {
		log.WithError(err).Error("Failed to upload snapshot in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, SnapshotResponse{SnapshotRef: uri})
}

// @Summary Send a test alert
// @Description Send a fixed test message through the hospital channel and report the outcome. Requires API key.
// @Tags Debug
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} NotificationAttemptResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 502 {object} NotificationAttemptResponse "Transport failed"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /debug/test-alert [post]
func (h *Handler) sendTestAlert(c *gin.Context) {
	log := h.logger.WithField("method", "sendTestAlert")

	attempt, err := h.incidentService.SendTestAlert(c.Request.Context())
	if err != nil {
		log.WithError(err).Warn("Test alert failed")
		if attempt != nil {
			c.JSON(http.StatusBadGateway, ModelToAttemptResponse(attempt))
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ModelToAttemptResponse(attempt))
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseIncidentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return 0, false
	}
	return id, true
}

func (h *Handler) respondIncidentError(c *gin.Context, log *logrus.Entry, err error) {
	if errors.Is(err, models.ErrIncidentNotFound) {
		log.WithError(err).Warn("Incident not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	log.WithError(err).Error("Failed to get incident from service")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
