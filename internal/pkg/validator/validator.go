package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

var (
	settlementModes = []string{"apply_to_order", "payout_only"}
	operatorRoles   = []string{"driver", "dispatcher", "admin"}
)

func registerCustomValidations() {
	validate.RegisterValidation("settlement_mode", func(fl validator.FieldLevel) bool {
		return oneOf(fl.Field().String(), settlementModes)
	})

	validate.RegisterValidation("operator_role", func(fl validator.FieldLevel) bool {
		return oneOf(fl.Field().String(), operatorRoles)
	})
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string)
	for _, err := range verrs {
		field := fieldPath(err)
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "settlement_mode":
			errors[field] = "Invalid mode. Must be: " + strings.Join(settlementModes, " or ")
		case "operator_role":
			errors[field] = "Invalid role. Must be: " + strings.Join(operatorRoles, ", ")
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// fieldPath drops the top-level struct name, so nested fields read
// "selections[0].order_id" instead of just "order_id".
func fieldPath(err validator.FieldError) string {
	ns := err.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return err.Field()
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
