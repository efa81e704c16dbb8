// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Request field names. They double as the predictor's input column labels.
const (
	FieldCalcDistance = "CALC_DISTANCE"
	FieldDurationMin  = "DURATION_MIN"
)

// missingFieldsMessage is returned whenever any required field is absent.
const missingFieldsMessage = "Missing required fields: " + FieldCalcDistance + " and " + FieldDurationMin

// Columns returns the input column labels in the fixed order used to build
// the predictor input.
func Columns() []string {
	return []string{FieldCalcDistance, FieldDurationMin}
}

// Request is a validated prediction request.
type Request struct {
	CalcDistance float64
	DurationMin  float64
}

// Values returns the request values in Columns() order.
func (r Request) Values() []float64 {
	return []float64{r.CalcDistance, r.DurationMin}
}

// Prediction is the successful /predict response body.
type Prediction struct {
	PredictedBatteryUsed float64 `json:"predicted_battery_used"`
}

// ParseRequest decodes and validates a /predict body. Presence of both fields
// is checked before either value is converted. Failures are *ValidationError.
func ParseRequest(body []byte) (Request, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Request{}, &ValidationError{Kind: KindMalformed, msg: "Invalid input data: empty request body"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Request{}, &ValidationError{Kind: KindMalformed, Err: err, msg: "Invalid input data: " + err.Error()}
	}
	if fields == nil {
		return Request{}, &ValidationError{Kind: KindMalformed, msg: "Invalid input data: request body must be a JSON object"}
	}

	var missing []string
	for _, name := range Columns() {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Request{}, &ValidationError{Kind: KindMissingField, Fields: missing, msg: missingFieldsMessage}
	}

	distance, err := toFloat(FieldCalcDistance, fields[FieldCalcDistance])
	if err != nil {
		return Request{}, err
	}
	duration, err := toFloat(FieldDurationMin, fields[FieldDurationMin])
	if err != nil {
		return Request{}, err
	}
	return Request{CalcDistance: distance, DurationMin: duration}, nil
}

// toFloat accepts a JSON number or a JSON string holding a float literal.
func toFloat(field string, raw json.RawMessage) (float64, error) {
	invalid := func(cause error) error {
		msg := fmt.Sprintf("Invalid input data: could not convert %s to float: %s", field, bytes.TrimSpace(raw))
		return &ValidationError{Kind: KindInvalidType, Fields: []string{field}, Err: cause, msg: msg}
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, invalid(nil)
	}

	var v float64
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, invalid(err)
		}
		s = strings.TrimSpace(s)
		if isHexLiteral(s) {
			return 0, invalid(errHexLiteral)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, invalid(err)
		}
		v = parsed
	case c == '-' || (c >= '0' && c <= '9'):
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0, invalid(err)
		}
	default:
		// null, booleans, arrays and objects
		return 0, invalid(nil)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid(nil)
	}
	return v, nil
}

var errHexLiteral = errors.New("hexadecimal literals are not accepted")

// isHexLiteral reports whether s is a 0x-prefixed literal, optionally signed.
func isHexLiteral(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
