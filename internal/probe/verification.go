package probe

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
)

func verifyHealth(resp response) error {
	if resp.status != http.StatusOK {
		return fmt.Errorf("expected status %d, got %d", http.StatusOK, resp.status)
	}
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := unmarshalJSON(resp.body, &body); err != nil {
		return err
	}
	if body.Status != "healthy" || body.Message != healthMessage {
		return fmt.Errorf("unexpected health body %q", truncate(resp.body))
	}
	return nil
}

func verifyPrediction(resp response) (float64, error) {
	if resp.status != http.StatusOK {
		return 0, fmt.Errorf("expected status %d, got %d: %s", http.StatusOK, resp.status, truncate(resp.body))
	}
	var body map[string]*float64
	if err := unmarshalJSON(resp.body, &body); err != nil {
		return 0, err
	}
	v, ok := body["predicted_battery_used"]
	if !ok || v == nil {
		return 0, fmt.Errorf("response has no predicted_battery_used: %s", truncate(resp.body))
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, fmt.Errorf("prediction is not finite: %v", *v)
	}
	return *v, nil
}

func verifySame(first, second response) error {
	if first.status != second.status || !bytes.Equal(first.body, second.body) {
		return fmt.Errorf("responses differ: %q vs %q", truncate(first.body), truncate(second.body))
	}
	return nil
}

func verifyError(resp response, status int, accept func(msg string) bool) error {
	if resp.status != status {
		return fmt.Errorf("expected status %d, got %d", status, resp.status)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := unmarshalJSON(resp.body, &body); err != nil {
		return err
	}
	if !accept(body.Error) {
		return fmt.Errorf("unexpected error message %q", body.Error)
	}
	return nil
}
