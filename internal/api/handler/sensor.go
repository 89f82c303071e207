package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cropsense/cropsense/internal/api/models"
	"github.com/cropsense/cropsense/internal/api/response"
	"github.com/cropsense/cropsense/internal/ingest"
	"github.com/cropsense/cropsense/internal/sensor"
)

// maxSensorBody bounds sensor update payloads.
const maxSensorBody = 64 << 10

// SensorUpdater applies raw sensor payloads.
type SensorUpdater interface {
	UpdateJSON(ctx context.Context, transport string, body []byte) (sensor.State, error)
}

// StateReader exposes the current process state.
type StateReader interface {
	Snapshot() sensor.State
}

// SensorHandler handles sensor update and state endpoints.
type SensorHandler struct {
	updater SensorUpdater
	state   StateReader
	logger  zerolog.Logger
}

// NewSensorHandler creates a new SensorHandler.
func NewSensorHandler(updater SensorUpdater, state StateReader, logger zerolog.Logger) *SensorHandler {
	return &SensorHandler{
		updater: updater,
		state:   state,
		logger:  logger,
	}
}

// UpdateSensors handles POST /update_data and POST /update_sensors.
func (h *SensorHandler) UpdateSensors(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSensorBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.UpdateError(w, r, http.StatusRequestEntityTooLarge, "payload too large", "")
			return
		}
		response.UpdateError(w, r, http.StatusBadRequest, "could not read request body", "")
		return
	}

	if _, err := h.updater.UpdateJSON(r.Context(), ingest.TransportHTTP, body); err != nil {
		if ingest.IsInvalidPayload(err) {
			response.UpdateError(w, r, http.StatusBadRequest, err.Error(), invalidField(err))
			return
		}
		h.logger.Error().Err(err).Msg("sensor update failed")
		response.UpdateError(w, r, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	response.JSON(w, r, http.StatusOK, models.UpdateResponse{
		Status:  models.StatusSuccess,
		Message: "Data updated",
	})
}

// GetData handles GET /get_data - the current readings, location and last prediction.
func (h *SensorHandler) GetData(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.state.Snapshot())
}

// invalidField names the offending field of a payload error, if any.
func invalidField(err error) string {
	var verr *sensor.ValidationError
	if errors.As(err, &verr) {
		return verr.Field
	}
	var rerr *sensor.OutOfRangeError
	if errors.As(err, &rerr) {
		return rerr.Field
	}
	return ""
}
