package appointment

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	icPattern       = regexp.MustCompile(`^\d{6}-\d{2}-\d{4}$`)
	passportPattern = regexp.MustCompile(`^[A-Z0-9]{6,12}$`)
	phonePattern    = regexp.MustCompile(`^01[0-9]-\d{7,8}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("patient_id", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		return icPattern.MatchString(id) || passportPattern.MatchString(id)
	})
	_ = v.RegisterValidation("phone_my", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("slot_time", func(fl validator.FieldLevel) bool {
		t := fl.Field().String()
		return t == AnyTime || clockTimePattern.MatchString(t)
	})
	return v
}

var validationMessages = map[string]string{
	"required":    "is required",
	"required_if": "is required",
	"patient_id":  "must be an IC number (YYMMDD-PB-###G) or a passport number",
	"phone_my":    "must look like 01X-XXXXXXX",
	"slot_time":   "must be HH:MM or \"any\"",
	"oneof":       "must be one of: ",
	"max":         "is too long",
	"gte":         "is too small",
	"lte":         "is too large",
}

// validateStruct runs the struct tags of s and converts failures into a *ValidationError.
func validateStruct(s any, extra map[string]string) error {
	fields := map[string]string{}
	for k, v := range extra {
		fields[k] = v
	}

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			msg, ok := validationMessages[fe.Tag()]
			if !ok {
				msg = "is invalid"
			}
			if fe.Tag() == "oneof" {
				msg += fe.Param()
			}
			fields[fe.Field()] = msg
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
