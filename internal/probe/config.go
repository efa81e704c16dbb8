// Package probe smoke-tests a running prediction server over HTTP.
package probe

import (
	"errors"
	"time"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultWorkers  = 4
	DefaultDistance = 12.5
	DefaultDuration = 30.0
)

// ErrProbeFailed is returned by Run when at least one check fails.
var ErrProbeFailed = errors.New("probe failed")

// Config holds configuration for a probe run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Timeout  time.Duration // HTTP request timeout
	Distance float64       // CALC_DISTANCE sent by the valid request
	Duration float64       // DURATION_MIN sent by the valid request
	Burst    int           // Concurrent identical predictions; 0 disables the burst check
	Workers  int           // Number of concurrent workers for the burst
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	return c
}

// Check is the outcome of one probe step.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Report summarizes a probe run.
type Report struct {
	BaseURL    string        `json:"base_url"`
	Checks     []Check       `json:"checks"`
	Prediction float64       `json:"prediction"`
	Requests   int           `json:"requests"`
	StartTime  time.Time     `json:"start_time"`
	Duration   time.Duration `json:"duration"`
}

// Failed returns the checks that did not pass.
func (r Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}
