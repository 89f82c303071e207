package sensor_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsense/cropsense/internal/sensor"
)

func validPayload() map[string]any {
	return map[string]any{
		"temperature": 25.0,
		"humidity":    70.0,
		"ph":          6.5,
	}
}

func TestPolicy_Parse_Valid(t *testing.T) {
	raw := validPayload()
	raw["rainfall"] = 120.0
	raw["soil_moisture"] = 45.0

	patch, err := sensor.DefaultPolicy().Parse(raw)
	require.NoError(t, err)

	require.NotNil(t, patch.Temperature)
	assert.Equal(t, 25.0, *patch.Temperature)
	assert.Equal(t, 70.0, *patch.Humidity)
	assert.Equal(t, 6.5, *patch.PH)
	assert.Equal(t, 120.0, *patch.Rainfall)
	assert.Equal(t, 45.0, *patch.SoilMoisture)
}

func TestPolicy_Parse_OptionalFieldsAbsent(t *testing.T) {
	patch, err := sensor.DefaultPolicy().Parse(validPayload())
	require.NoError(t, err)

	assert.Nil(t, patch.Rainfall)
	assert.Nil(t, patch.SoilMoisture)
}

func TestPolicy_Parse_Empty(t *testing.T) {
	_, err := sensor.DefaultPolicy().Parse(nil)

	var verr *sensor.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "no JSON data received", verr.Reason)
}

func TestPolicy_Parse_MissingRequired(t *testing.T) {
	raw := validPayload()
	delete(raw, "humidity")

	_, err := sensor.DefaultPolicy().Parse(raw)

	var verr *sensor.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "humidity", verr.Field)
}

func TestPolicy_Parse_NullRequired(t *testing.T) {
	raw := validPayload()
	raw["ph"] = nil

	_, err := sensor.DefaultPolicy().Parse(raw)

	var verr *sensor.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ph", verr.Field)
}

func TestPolicy_Parse_TempAlias(t *testing.T) {
	raw := validPayload()
	delete(raw, "temperature")
	raw["temp"] = 31.5

	patch, err := sensor.DefaultPolicy().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 31.5, *patch.Temperature)
}

func TestPolicy_Parse_CanonicalBeatsAlias(t *testing.T) {
	raw := validPayload()
	raw["temp"] = 31.5

	patch, err := sensor.DefaultPolicy().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 25.0, *patch.Temperature)
}

func TestPolicy_Parse_NumericForms(t *testing.T) {
	raw := map[string]any{
		"temperature": "22.5",
		"humidity":    json.Number("64"),
		"ph":          7,
	}

	patch, err := sensor.DefaultPolicy().Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 22.5, *patch.Temperature)
	assert.Equal(t, 64.0, *patch.Humidity)
	assert.Equal(t, 7.0, *patch.PH)
}

func TestPolicy_Parse_NonNumeric(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"word", "warm"},
		{"bool", true},
		{"object", map[string]any{"v": 1}},
		{"nan", "NaN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validPayload()
			raw["temperature"] = tt.value

			_, err := sensor.DefaultPolicy().Parse(raw)

			var verr *sensor.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "temperature", verr.Field)
		})
	}
}

func TestPolicy_Parse_OutOfRangeRejected(t *testing.T) {
	tests := []struct {
		field string
		value float64
	}{
		{"temperature", 75},
		{"temperature", -1},
		{"humidity", 5},
		{"ph", 10},
		{"ph", 2.9},
		{"rainfall", 501},
		{"soil_moisture", 120},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			raw := validPayload()
			raw[tt.field] = tt.value

			_, err := sensor.DefaultPolicy().Parse(raw)

			var rerr *sensor.OutOfRangeError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.field, rerr.Field)
			assert.Equal(t, tt.value, rerr.Value)
		})
	}
}

func TestPolicy_Parse_ReportsFirstInvalidFieldInOrder(t *testing.T) {
	tests := []struct {
		name      string
		raw       map[string]any
		wantField string
		wantRange bool
	}{
		{
			name:      "two fields out of range",
			raw:       map[string]any{"temperature": 75.0, "humidity": 5.0, "ph": 6.5},
			wantField: sensor.FieldTemperature,
			wantRange: true,
		},
		{
			name:      "later fields out of range",
			raw:       map[string]any{"temperature": 25.0, "humidity": 70.0, "ph": 11.0, "soil_moisture": 130.0},
			wantField: sensor.FieldPH,
			wantRange: true,
		},
		{
			name:      "type error wins over range error",
			raw:       map[string]any{"temperature": 75.0, "humidity": 70.0, "ph": 6.5, "rainfall": "heavy"},
			wantField: sensor.FieldRainfall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Map iteration is randomized; the reported field must not be.
			for range 50 {
				_, err := sensor.DefaultPolicy().Parse(tt.raw)
				require.Error(t, err)

				var rerr *sensor.OutOfRangeError
				var verr *sensor.ValidationError
				if tt.wantRange {
					require.ErrorAs(t, err, &rerr)
					assert.Equal(t, tt.wantField, rerr.Field)
				} else {
					require.ErrorAs(t, err, &verr)
					assert.Equal(t, tt.wantField, verr.Field)
				}
			}
		})
	}
}

func TestPolicy_Parse_Bounds(t *testing.T) {
	raw := map[string]any{
		"temperature":   0.0,
		"humidity":      100.0,
		"ph":            9.5,
		"rainfall":      500.0,
		"soil_moisture": 0.0,
	}

	_, err := sensor.DefaultPolicy().Parse(raw)
	assert.NoError(t, err)
}

func TestPolicy_Parse_Clamp(t *testing.T) {
	policy := sensor.DefaultPolicy().WithAction(sensor.ActionClamp)

	raw := validPayload()
	raw["temperature"] = 75.0
	raw["ph"] = 1.0

	patch, err := policy.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 60.0, *patch.Temperature)
	assert.Equal(t, 3.0, *patch.PH)
}

func TestPolicy_WithAction_DoesNotMutateOriginal(t *testing.T) {
	base := sensor.DefaultPolicy()
	_ = base.WithAction(sensor.ActionClamp)

	for field, r := range base.Ranges {
		assert.Equal(t, sensor.ActionReject, r.OnViolation, field)
	}
}

func TestParseAction(t *testing.T) {
	action, err := sensor.ParseAction("")
	require.NoError(t, err)
	assert.Equal(t, sensor.ActionReject, action)

	action, err = sensor.ParseAction(" Clamp ")
	require.NoError(t, err)
	assert.Equal(t, sensor.ActionClamp, action)

	_, err = sensor.ParseAction("ignore")
	assert.Error(t, err)
}

func TestOutOfRangeError_Message(t *testing.T) {
	err := &sensor.OutOfRangeError{Field: "temperature", Value: 75, Min: 0, Max: 60}
	assert.Equal(t, "invalid temperature reading 75: must be between 0 and 60", err.Error())
}
