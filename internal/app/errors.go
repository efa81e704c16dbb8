package service

import "errors"

// Sentinel errors returned by the prediction service.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrModelLoad         = errors.New("model load failed")
	ErrIncompatibleModel = errors.New("model features are not supported by the request schema")
	ErrPrediction        = errors.New("prediction failed")
)
