package smartcharging

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jameshartig/chargeplan/pkg/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("chargingProfilePurpose", validatePurpose)
	validate.RegisterValidation("chargingProfileKind", validateKind)
	validate.RegisterValidation("recurrencyKind", validateRecurrencyKind)
	validate.RegisterValidation("chargingRateUnit", validateRateUnit)
}

func validatePurpose(fl validator.FieldLevel) bool {
	return types.ChargingProfilePurpose(fl.Field().String()).Precedence() > 0
}

func validateKind(fl validator.FieldLevel) bool {
	switch types.ChargingProfileKind(fl.Field().String()) {
	case types.KindAbsolute, types.KindRecurring, types.KindRelative:
		return true
	default:
		return false
	}
}

func validateRecurrencyKind(fl validator.FieldLevel) bool {
	switch types.RecurrencyKind(fl.Field().String()) {
	case types.RecurrencyDaily, types.RecurrencyWeekly:
		return true
	default:
		return false
	}
}

func validateRateUnit(fl validator.FieldLevel) bool {
	switch types.ChargingRateUnit(fl.Field().String()) {
	case types.ChargingRateUnitAmperes, types.ChargingRateUnitWatts:
		return true
	default:
		return false
	}
}

// validateStruct validates a request and flattens validation errors into a
// single readable message.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Namespace() + " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return errors.New(strings.Join(msgs, ", "))
}
