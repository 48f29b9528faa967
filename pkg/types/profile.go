package types

import "time"

// ChargingProfilePurpose is the role a charging profile plays on a station.
type ChargingProfilePurpose string

const (
	// PurposeChargePointMax caps the whole station (or a connector) regardless
	// of any transaction.
	PurposeChargePointMax ChargingProfilePurpose = "ChargePointMaxProfile"
	// PurposeTxDefault applies to every transaction that has no TxProfile.
	PurposeTxDefault ChargingProfilePurpose = "TxDefaultProfile"
	// PurposeTx applies to one running transaction.
	PurposeTx ChargingProfilePurpose = "TxProfile"
)

// Precedence returns the fixed precedence of the purpose. TxProfile shadows
// TxDefaultProfile which shadows ChargePointMaxProfile. Unknown purposes
// return 0.
func (p ChargingProfilePurpose) Precedence() int {
	switch p {
	case PurposeChargePointMax:
		return 1
	case PurposeTxDefault:
		return 2
	case PurposeTx:
		return 3
	default:
		return 0
	}
}

// ChargingProfileKind determines how the schedule start is anchored in time.
type ChargingProfileKind string

const (
	KindAbsolute  ChargingProfileKind = "Absolute"
	KindRecurring ChargingProfileKind = "Recurring"
	KindRelative  ChargingProfileKind = "Relative"
)

// RecurrencyKind is the calendar repetition of a Recurring profile.
type RecurrencyKind string

const (
	RecurrencyDaily  RecurrencyKind = "Daily"
	RecurrencyWeekly RecurrencyKind = "Weekly"
)

// ChargingRateUnit is the unit every limit of a schedule is expressed in.
type ChargingRateUnit string

const (
	ChargingRateUnitAmperes ChargingRateUnit = "A"
	ChargingRateUnitWatts   ChargingRateUnit = "W"
)

// ChargingSchedulePeriod is a single limit starting StartPeriod seconds after
// the start of its schedule.
type ChargingSchedulePeriod struct {
	StartPeriod  int     `json:"startPeriod" validate:"gte=0"`
	Limit        float64 `json:"limit" validate:"gte=0"`
	NumberPhases *int    `json:"numberPhases,omitempty" validate:"omitempty,min=1,max=3"`
}

// SameLimit reports whether two periods carry the same limit and phase count.
func (p ChargingSchedulePeriod) SameLimit(o ChargingSchedulePeriod) bool {
	if p.Limit != o.Limit {
		return false
	}
	if p.NumberPhases == nil || o.NumberPhases == nil {
		return p.NumberPhases == nil && o.NumberPhases == nil
	}
	return *p.NumberPhases == *o.NumberPhases
}

// ChargingSchedule is the sequence of limits inside a profile.
type ChargingSchedule struct {
	// Duration in seconds, nil means open-ended.
	Duration               *int                     `json:"duration,omitempty" validate:"omitempty,gt=0"`
	StartSchedule          *time.Time               `json:"startSchedule,omitempty"`
	ChargingRateUnit       ChargingRateUnit         `json:"chargingRateUnit" validate:"required,chargingRateUnit"`
	ChargingSchedulePeriod []ChargingSchedulePeriod `json:"chargingSchedulePeriod" validate:"required,min=1,dive"`
	MinChargingRate        *float64                 `json:"minChargingRate,omitempty" validate:"omitempty,gte=0"`
}

// ChargingProfile is a prioritized, time-scoped description of charging limits.
type ChargingProfile struct {
	ChargingProfileID      int                    `json:"chargingProfileId"`
	TransactionID          *int                   `json:"transactionId,omitempty"`
	StackLevel             int                    `json:"stackLevel" validate:"gte=0"`
	ChargingProfilePurpose ChargingProfilePurpose `json:"chargingProfilePurpose" validate:"required,chargingProfilePurpose"`
	ChargingProfileKind    ChargingProfileKind    `json:"chargingProfileKind" validate:"required,chargingProfileKind"`
	RecurrencyKind         RecurrencyKind         `json:"recurrencyKind,omitempty" validate:"omitempty,recurrencyKind"`
	ValidFrom              *time.Time             `json:"validFrom,omitempty"`
	ValidTo                *time.Time             `json:"validTo,omitempty"`
	ChargingSchedule       ChargingSchedule       `json:"chargingSchedule"`

	// InstalledAt is when the station accepted the profile. It is not part of
	// the wire format sent by the backend and is set on admission.
	InstalledAt time.Time `json:"installedAt,omitzero"`
}

// Clone returns a deep copy of the profile so callers can modify periods
// without touching the original.
func (p ChargingProfile) Clone() ChargingProfile {
	c := p
	c.ChargingSchedule.ChargingSchedulePeriod = make([]ChargingSchedulePeriod, len(p.ChargingSchedule.ChargingSchedulePeriod))
	for i, period := range p.ChargingSchedule.ChargingSchedulePeriod {
		if period.NumberPhases != nil {
			n := *period.NumberPhases
			period.NumberPhases = &n
		}
		c.ChargingSchedule.ChargingSchedulePeriod[i] = period
	}
	return c
}

// InstalledProfile is a profile as stored for a connector of a station.
// Connector 0 addresses the station as a whole.
type InstalledProfile struct {
	ConnectorID int             `json:"connectorId"`
	Profile     ChargingProfile `json:"profile"`
}

// ProfileStatus is the answer to SetChargingProfile and ClearChargingProfile.
type ProfileStatus string

const (
	ProfileStatusAccepted     ProfileStatus = "Accepted"
	ProfileStatusRejected     ProfileStatus = "Rejected"
	ProfileStatusNotSupported ProfileStatus = "NotSupported"
	ProfileStatusUnknown      ProfileStatus = "Unknown"
)
