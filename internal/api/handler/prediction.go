package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cropsense/cropsense/internal/api/models"
	"github.com/cropsense/cropsense/internal/api/response"
	"github.com/cropsense/cropsense/internal/prediction"
)

const maxPredictionBody = 4 << 10

// Predictor runs the prediction pipeline.
type Predictor interface {
	Predict(ctx context.Context, lat, lon float64) prediction.Result
}

// PredictionHandler handles the prediction endpoint.
type PredictionHandler struct {
	predictor Predictor
	validate  *validator.Validate
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(predictor Predictor) *PredictionHandler {
	return &PredictionHandler{
		predictor: predictor,
		validate:  newValidator(),
	}
}

// GetPrediction handles POST /get_prediction - enrich, classify and alert.
func (h *PredictionHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	var input models.PredictionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPredictionBody))
	if err := dec.Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Problem(w, r, models.KindPayloadTooLarge, "request body exceeds 4 KiB")
			return
		}
		response.Problem(w, r, models.KindValidation, "invalid JSON body")
		return
	}

	if err := h.validate.Struct(input); err != nil {
		response.Problem(w, r, models.KindInvalidCoordinates, "invalid coordinates", fieldErrors(err)...)
		return
	}

	lat, lon := input.Coordinates()
	result := h.predictor.Predict(r.Context(), lat, lon)

	response.JSON(w, r, http.StatusOK, models.PredictionResponse{
		Sensors: models.SensorsView{
			State:      result.State,
			AnnualRain: result.AnnualRain,
		},
		Prediction: result.Label,
		Alert:      result.Alert,
	})
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldErrors converts validator errors to Problem field errors.
func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.FieldError{{Message: err.Error()}}
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fieldErr := models.FieldError{Field: fe.Field(), Code: strings.ToUpper(fe.Tag())}
		switch fe.Tag() {
		case "gte":
			fieldErr.Message = "must be at least " + fe.Param()
			fieldErr.Code = "OUT_OF_RANGE"
		case "lte":
			fieldErr.Message = "must be at most " + fe.Param()
			fieldErr.Code = "OUT_OF_RANGE"
		default:
			fieldErr.Message = "failed " + fe.Tag() + " validation"
		}
		out = append(out, fieldErr)
	}
	return out
}
