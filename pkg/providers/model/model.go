// Package model holds the per-request model parameters shared by all
// provider families.
package model

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultTemperature applies when a request does not set one.
	DefaultTemperature = 0.7
	// MaxOutputTokens is the fixed response size limit for every request.
	MaxOutputTokens = 4096

	minTemperature = 0.0
	maxTemperature = 2.0
)

// ErrTemperatureRange is returned for temperatures outside [0.0, 2.0].
var ErrTemperatureRange = errors.New("model: temperature out of range")

// Params are the caller-supplied model settings for one request.
// The zero value is valid; zero fields mean "use the default".
type Params struct {
	Model       string
	Temperature *float64
}

// Temp returns a pointer to t, for use in Params literals.
func Temp(t float64) *float64 { return &t }

// Validate checks that the temperature, when set, is within range.
func (p Params) Validate() error {
	if p.Temperature == nil {
		return nil
	}
	if t := *p.Temperature; math.IsNaN(t) || t < minTemperature || t > maxTemperature {
		return fmt.Errorf("%w: %g", ErrTemperatureRange, t)
	}
	return nil
}

// ModelOr returns the configured model name or fallback when unset.
func (p Params) ModelOr(fallback string) string {
	if p.Model == "" {
		return fallback
	}
	return p.Model
}

// TemperatureOrDefault returns the configured temperature or
// DefaultTemperature when unset.
func (p Params) TemperatureOrDefault() float64 {
	if p.Temperature == nil {
		return DefaultTemperature
	}
	return *p.Temperature
}
