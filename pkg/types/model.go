package types

import "time"

// Transaction is a charging session running on a connector. Its start anchors
// every Relative profile on that connector.
type Transaction struct {
	ID          int       `json:"transactionId"`
	ConnectorID int       `json:"connectorId"`
	IDTag       string    `json:"idTag,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
}

// AppliedLimit is the limit a charger connector is currently enforcing.
type AppliedLimit struct {
	// Unlimited is true when the connector runs without a limit, Limit is
	// ignored in that case.
	Unlimited    bool             `json:"unlimited,omitempty"`
	Limit        float64          `json:"limit"`
	NumberPhases *int             `json:"numberPhases,omitempty"`
	RateUnit     ChargingRateUnit `json:"rateUnit"`
}

// Equal reports whether both limits would make the charger behave the same.
func (a AppliedLimit) Equal(o AppliedLimit) bool {
	if a.Unlimited || o.Unlimited {
		return a.Unlimited == o.Unlimited
	}
	if a.RateUnit != o.RateUnit {
		return false
	}
	return ChargingSchedulePeriod{Limit: a.Limit, NumberPhases: a.NumberPhases}.SameLimit(
		ChargingSchedulePeriod{Limit: o.Limit, NumberPhases: o.NumberPhases},
	)
}

// ConnectorStatus represents the current state of a charger connector.
type ConnectorStatus struct {
	Timestamp   time.Time    `json:"timestamp"`
	ConnectorID int          `json:"connectorId"`
	Limit       AppliedLimit `json:"limit"`
	Online      bool         `json:"online"`
}

// ActionReason represents why the control loop chose a limit.
type ActionReason string

const (
	ActionReasonComposite     ActionReason = "composite"
	ActionReasonDefaultLimit  ActionReason = "defaultLimit"
	ActionReasonUnlimited     ActionReason = "unlimited"
	ActionReasonPaused        ActionReason = "paused"
	ActionReasonResolveFailed ActionReason = "resolveFailed"
)

// Action represents a control decision made by the system for a connector.
type Action struct {
	Timestamp   time.Time    `json:"timestamp"`
	ConnectorID int          `json:"connectorId"`
	Limit       AppliedLimit `json:"limit"`
	NoChange    bool         `json:"noChange,omitempty"`
	Reason      ActionReason `json:"reason"`
	Description string       `json:"description"`
	// NextChangeAt is when the composite schedule changes the limit next.
	NextChangeAt time.Time `json:"nextChangeAt,omitzero"`
	DryRun       bool      `json:"dryRun,omitempty"`
	Failed       bool      `json:"failed,omitempty"`
	Paused       bool      `json:"paused,omitempty"`
	Error        string    `json:"error,omitempty"`
}
