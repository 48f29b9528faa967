package smartcharging

import (
	"time"

	"github.com/jameshartig/chargeplan/pkg/types"
)

// SetChargingProfileRequest installs a profile on a connector. Connector 0
// addresses the whole station.
type SetChargingProfileRequest struct {
	ConnectorID     int                    `json:"connectorId" validate:"gte=0"`
	ChargingProfile *types.ChargingProfile `json:"csChargingProfiles" validate:"required"`
}

// SetChargingProfileResponse answers SetChargingProfileRequest.
type SetChargingProfileResponse struct {
	Status types.ProfileStatus `json:"status"`
	Error  string              `json:"error,omitempty"`
}

// ClearChargingProfileRequest removes every profile matching all of the set
// filters. An empty request removes every profile of the station.
type ClearChargingProfileRequest struct {
	ID                     *int                         `json:"id,omitempty"`
	ConnectorID            *int                         `json:"connectorId,omitempty" validate:"omitempty,gte=0"`
	ChargingProfilePurpose types.ChargingProfilePurpose `json:"chargingProfilePurpose,omitempty" validate:"omitempty,chargingProfilePurpose"`
	StackLevel             *int                         `json:"stackLevel,omitempty" validate:"omitempty,gte=0"`
}

// ClearChargingProfileResponse answers ClearChargingProfileRequest.
type ClearChargingProfileResponse struct {
	Status types.ProfileStatus `json:"status"`
}

// GetCompositeScheduleRequest asks for the composite schedule of a connector
// for the next Duration seconds.
type GetCompositeScheduleRequest struct {
	ConnectorID      int                    `json:"connectorId" validate:"gte=0"`
	Duration         int                    `json:"duration" validate:"gt=0"`
	ChargingRateUnit types.ChargingRateUnit `json:"chargingRateUnit,omitempty" validate:"omitempty,chargingRateUnit"`
}

// GetCompositeScheduleResponse answers GetCompositeScheduleRequest.
type GetCompositeScheduleResponse struct {
	Status           types.ProfileStatus      `json:"status"`
	ConnectorID      *int                     `json:"connectorId,omitempty"`
	ScheduleStart    *time.Time               `json:"scheduleStart,omitempty"`
	ChargingSchedule *types.CompositeSchedule `json:"chargingSchedule,omitempty"`
	Error            string                   `json:"error,omitempty"`
}

// StartTransactionRequest reports a transaction starting on a connector.
type StartTransactionRequest struct {
	ConnectorID   int    `json:"connectorId" validate:"gte=1"`
	TransactionID int    `json:"transactionId" validate:"gt=0"`
	IDTag         string `json:"idTag,omitempty" validate:"max=20"`
	// Timestamp defaults to now.
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// StopTransactionRequest reports a transaction ending.
type StopTransactionRequest struct {
	TransactionID int `json:"transactionId" validate:"gt=0"`
}
