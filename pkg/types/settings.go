package types

import (
	"fmt"
)

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 3

// StationSettings represents the configuration stored in the database for a
// single charging station. These are dynamic settings that can be changed
// without redeploying.
type StationSettings struct {
	// DryRun resolves and records decisions without applying them to the
	// charger.
	DryRun bool `json:"dryRun"`
	// Pause updates
	Pause bool `json:"pause"`

	// Number of connectors on the station, connectors are numbered from 1.
	ConnectorCount int `json:"connectorCount"`

	// Electrical Settings
	// Nominal phase voltage used to convert between A and W.
	Voltage float64 `json:"voltage"`
	// Phases assumed when a period does not specify numberPhases.
	DefaultPhases int `json:"defaultPhases"`
	// Unit the control loop works in.
	RateUnit ChargingRateUnit `json:"rateUnit"`

	// Limit applied when no profile covers the current instant. 0 means the
	// charger is left unlimited.
	DefaultLimit float64 `json:"defaultLimit"`

	// How far ahead (in seconds) the control loop resolves the composite
	// schedule on every update.
	HorizonSeconds int `json:"horizonSeconds"`
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were made, and an error if migration failed.
func MigrateSettings(s StationSettings, currentVersion int) (StationSettings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	// Loop through versions to apply migrations sequentially
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial
			if s.ConnectorCount == 0 {
				s.ConnectorCount = 1
				migrated = true
			}
			if s.RateUnit == "" {
				s.RateUnit = ChargingRateUnitAmperes
				migrated = true
			}
		case 2:
			// version 2: add electrical settings for unit conversion
			if s.Voltage == 0 {
				s.Voltage = 230
				migrated = true
			}
			if s.DefaultPhases == 0 {
				s.DefaultPhases = 3
				migrated = true
			}
		case 3:
			// version 3: add control horizon
			if s.HorizonSeconds == 0 {
				s.HorizonSeconds = 86400
				migrated = true
			}
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}
