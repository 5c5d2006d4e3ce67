package types

import (
	"fmt"
	"math"
	"time"
)

// DefaultAlertThresholdPct flags days producing 20% below prediction.
const DefaultAlertThresholdPct = 20

// Plant describes the monitored installation.
type Plant struct {
	Name        string  `json:"name"`
	CapacityKWP float64 `json:"capacityKWP"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`

	// AlertThresholdPct is the default used when a request doesn't specify
	// one. It is always passed explicitly into metric calculations.
	AlertThresholdPct float64 `json:"alertThresholdPct"`
}

// DefaultPlant is the HKL GGI installation in Dhaka.
func DefaultPlant() Plant {
	return Plant{
		Name:              "HKL GGI",
		CapacityKWP:       269.28,
		Latitude:          24.0223,
		Longitude:         90.2957,
		Timezone:          "Asia/Dhaka",
		AlertThresholdPct: DefaultAlertThresholdPct,
	}
}

// Location loads the plant's IANA timezone.
func (p Plant) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load plant timezone (%s): %w", p.Timezone, err)
	}
	return loc, nil
}

// ValidateThreshold returns ErrInvalidArgument unless 0 <= pct <= 100.
func ValidateThreshold(pct float64) error {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return fmt.Errorf("%w: alert threshold must be between 0 and 100, got %v", ErrInvalidArgument, pct)
	}
	return nil
}
