package config

import "github.com/sirupsen/logrus"

// Limits enforced by the validating accessors. Out-of-range values are
// corrected at the configuration boundary, never propagated.
const (
	MinIntervalMinutes = 60
	MaxIntervalMinutes = 1440
	MinSpeed           = 1
	MaxSpeed           = 5
)

type Config interface {
	Enabled() bool
	IntervalMinutes() int
	Speed() int
	SmartMode() bool
	Schedule() []string

	SetEnabled(bool)
	SetIntervalMinutes(int)
	SetSpeed(int)
	SetSmartMode(bool)
	SetSchedule([]string)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error

	LogrusFields() logrus.Fields
}
