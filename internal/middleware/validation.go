package middleware

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/medidesk/practice-api/internal/model"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

var customValidators = map[string]validator.Func{
	"appointment_status": func(fl validator.FieldLevel) bool {
		return model.AppointmentStatus(fl.Field().String()).Valid()
	},
	"registrable_role": func(fl validator.FieldLevel) bool {
		role := model.Role(fl.Field().String())
		return role == model.RoleDoctor || role == model.RolePatient
	},
	"gender": func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case model.GenderMale, model.GenderFemale, model.GenderOther:
			return true
		}
		return false
	},
	"blood_group": func(fl validator.FieldLevel) bool {
		for _, g := range model.BloodGroups {
			if fl.Field().String() == g {
				return true
			}
		}
		return false
	},
	"clock": func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	},
	"weekday": func(fl validator.FieldLevel) bool {
		return model.ValidWeekdayCode(fl.Field().String())
	},
}

// RegisterValidators installs the domain validation tags on gin's validator
// and reports field names by their json tag.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return registerOn(v)
}

func registerOn(v *validator.Validate) error {
	for tag, fn := range customValidators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return nil
}
