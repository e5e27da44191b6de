package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	mobilePattern = regexp.MustCompile(`^(01[3-9]\d{8}|[6-9]\d{9})$`)
	upiPattern    = regexp.MustCompile(`^[\w.-]+@[\w.-]+$`)
	last4Pattern  = regexp.MustCompile(`^\d{4}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})
	must("upi", func(fl validator.FieldLevel) bool {
		return upiPattern.MatchString(fl.Field().String())
	})
	must("last4", func(fl validator.FieldLevel) bool {
		return last4Pattern.MatchString(fl.Field().String())
	})
	must("ymd", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(dateLayout, fl.Field().String())
		return err == nil
	})
	must("hhmm", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(timeLayout, fl.Field().String())
		return err == nil && len(fl.Field().String()) == 5
	})
	must("objectid", func(fl validator.FieldLevel) bool {
		return primitive.IsValidObjectID(fl.Field().String())
	})
	return v
}

// validateStruct runs the struct tags and reports the first failure as ErrInvalidInput.
func validateStruct(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fe := verrs[0]
	return fmt.Errorf("%w: %s", ErrInvalidInput, describe(fe))
}

func describe(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", field)
	case "email":
		return field + " must be a valid email"
	case "mobile":
		return "invalid mobile number format"
	case "ymd":
		return field + " must be YYYY-MM-DD"
	case "hhmm":
		return field + " must be HH:MM"
	case "objectid":
		return field + " is not a valid id"
	case "upi":
		return "invalid UPI id format"
	case "last4":
		return "last4 must be 4 digits"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func parseID(field, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, invalid("%s is not a valid id", field)
	}
	return id, nil
}

// parseDate normalizes a YYYY-MM-DD string to UTC midnight.
func parseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, invalid("date must be YYYY-MM-DD")
	}
	return d, nil
}
