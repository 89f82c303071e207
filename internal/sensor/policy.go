package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Action decides what happens to a value outside its range.
type Action string

const (
	// ActionReject fails validation with an OutOfRangeError.
	ActionReject Action = "reject"
	// ActionClamp pins the value to the nearest bound.
	ActionClamp Action = "clamp"
)

// ParseAction converts a configuration string to an Action.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionReject, "":
		return ActionReject, nil
	case ActionClamp:
		return ActionClamp, nil
	default:
		return "", fmt.Errorf("unknown range action %q", s)
	}
}

// Range is the accepted interval for one field.
type Range struct {
	Min         float64
	Max         float64
	OnViolation Action
}

// Policy is the single validation table consulted by every entry point.
type Policy struct {
	Ranges   map[string]Range
	Required []string
}

// DefaultPolicy returns the documented physical ranges, all rejecting.
func DefaultPolicy() Policy {
	return Policy{
		Ranges: map[string]Range{
			FieldTemperature:  {Min: 0, Max: 60, OnViolation: ActionReject},
			FieldHumidity:     {Min: 10, Max: 100, OnViolation: ActionReject},
			FieldPH:           {Min: 3.0, Max: 9.5, OnViolation: ActionReject},
			FieldRainfall:     {Min: 0, Max: 500, OnViolation: ActionReject},
			FieldSoilMoisture: {Min: 0, Max: 100, OnViolation: ActionReject},
		},
		Required: []string{FieldTemperature, FieldHumidity, FieldPH},
	}
}

// WithAction returns a copy of the policy with every range using action.
func (p Policy) WithAction(action Action) Policy {
	ranges := make(map[string]Range, len(p.Ranges))
	for field, r := range p.Ranges {
		r.OnViolation = action
		ranges[field] = r
	}
	required := append([]string(nil), p.Required...)
	return Policy{Ranges: ranges, Required: required}
}

// Parse extracts a Patch from a decoded JSON object. Numbers, json.Number
// and numeric strings are accepted. Unknown keys are ignored.
func (p Policy) Parse(raw map[string]any) (Patch, error) {
	if len(raw) == 0 {
		return Patch{}, &ValidationError{Reason: "no JSON data received"}
	}

	values := make(map[string]any, len(raw))
	for key, v := range raw {
		field := strings.ToLower(strings.TrimSpace(key))
		canonical, isAlias := fieldAliases[field]
		if isAlias {
			field = canonical
		}
		if _, known := p.Ranges[field]; !known {
			continue
		}
		// canonical key wins over its alias
		if _, seen := values[field]; seen && isAlias {
			continue
		}
		values[field] = v
	}

	for _, field := range p.Required {
		if v, ok := values[field]; !ok || v == nil {
			return Patch{}, &ValidationError{Field: field, Reason: "missing data field"}
		}
	}

	// Type errors are reported before range errors, each in field order.
	fields := orderedFields(values)
	numbers := make(map[string]float64, len(fields))
	for _, field := range fields {
		f, err := toFloat(values[field])
		if err != nil {
			return Patch{}, &ValidationError{Field: field, Reason: err.Error()}
		}
		numbers[field] = f
	}

	var patch Patch
	for _, field := range fields {
		f, err := p.check(field, numbers[field])
		if err != nil {
			return Patch{}, err
		}
		patch.set(field, f)
	}

	if patch.IsEmpty() {
		return Patch{}, &ValidationError{Reason: "no sensor fields in payload"}
	}
	return patch, nil
}

// orderedFields lists the non-null keys of values in fieldOrder, followed by
// any other keys sorted by name.
func orderedFields(values map[string]any) []string {
	fields := make([]string, 0, len(values))
	for _, field := range fieldOrder {
		if v, ok := values[field]; ok && v != nil {
			fields = append(fields, field)
		}
	}
	var extra []string
	for field, v := range values {
		if v != nil && !slices.Contains(fieldOrder, field) {
			extra = append(extra, field)
		}
	}
	slices.Sort(extra)
	return append(fields, extra...)
}

// check applies the range rule for a single field.
func (p Policy) check(field string, v float64) (float64, error) {
	r, ok := p.Ranges[field]
	if !ok || (v >= r.Min && v <= r.Max) {
		return v, nil
	}
	if r.OnViolation == ActionClamp {
		return math.Min(math.Max(v, r.Min), r.Max), nil
	}
	return 0, &OutOfRangeError{Field: field, Value: v, Min: r.Min, Max: r.Max}
}

func toFloat(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", t.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", t)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("value must be finite")
	}
	return f, nil
}
