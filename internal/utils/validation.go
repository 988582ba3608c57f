package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
)

// forbiddenFilterOperators execute server-side JavaScript and are never
// accepted inside custom filters.
var forbiddenFilterOperators = map[string]bool{
	"$where":       true,
	"$function":    true,
	"$accumulator": true,
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the domain rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("role", validateRole)
		_ = v.RegisterValidation("channel", validateChannel)
		_ = v.RegisterValidation("activity_status", validateActivityStatus)
		_ = v.RegisterValidation("logic", validateLogic)
		_ = v.RegisterValidation("safe_filter", validateSafeFilter)
		validate = v
	})
	return validate
}

// ValidateStruct validates s and converts failures into a validation error
// carrying one issue per field.
func ValidateStruct(s interface{}) error {
	if err := Validator().Struct(s); err != nil {
		return errs.InvalidInput(Issues(err))
	}
	return nil
}

// Issues converts validator and JSON decoding errors into issue lists.
func Issues(err error) []errs.Issue {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		issues := make([]errs.Issue, 0, len(validationErrs))
		for _, fe := range validationErrs {
			issues = append(issues, errs.Issue{
				Code:    issueCode(fe.Tag()),
				Path:    issuePath(fe.Namespace()),
				Message: issueMessage(fe),
			})
		}
		return issues
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []errs.Issue{{
			Code:    "invalid_type",
			Path:    splitPath(typeErr.Field),
			Message: fmt.Sprintf("Expected %s, received %s", typeErr.Type.String(), typeErr.Value),
		}}
	}

	return []errs.Issue{{Code: "custom", Path: []string{}, Message: err.Error()}}
}

// ForbiddenFilterOperator walks a custom filter and returns the first
// server-side JavaScript operator it contains.
func ForbiddenFilterOperator(filter interface{}) (string, bool) {
	switch v := filter.(type) {
	case map[string]interface{}:
		for key, inner := range v {
			if forbiddenFilterOperators[key] {
				return key, true
			}
			if op, found := ForbiddenFilterOperator(inner); found {
				return op, true
			}
		}
	case []interface{}:
		for _, inner := range v {
			if op, found := ForbiddenFilterOperator(inner); found {
				return op, true
			}
		}
	}
	return "", false
}

func validateRole(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().String()).IsValid()
}

func validateChannel(fl validator.FieldLevel) bool {
	return models.Channel(fl.Field().String()).IsValid()
}

func validateActivityStatus(fl validator.FieldLevel) bool {
	return models.ActivityStatus(fl.Field().String()).IsValid()
}

func validateLogic(fl validator.FieldLevel) bool {
	l := models.Logic(fl.Field().String())
	return l == models.LogicAnd || l == models.LogicOr
}

func validateSafeFilter(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.Map {
		return false
	}
	filter, ok := fl.Field().Interface().(map[string]interface{})
	if !ok {
		return false
	}
	_, found := ForbiddenFilterOperator(filter)
	return !found
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func issueCode(tag string) string {
	switch tag {
	case "required":
		return "invalid_type"
	case "min", "gte", "gt":
		return "too_small"
	case "max", "lte", "lt":
		return "too_big"
	case "oneof", "role", "channel", "activity_status", "logic":
		return "invalid_enum_value"
	case "email", "url":
		return "invalid_string"
	default:
		return "custom"
	}
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min", "gte":
		if isCollection(fe.Kind()) {
			return fmt.Sprintf("Must contain at least %s element(s)", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max", "lte":
		if isCollection(fe.Kind()) {
			return fmt.Sprintf("Must contain at most %s element(s)", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Invalid enum value. Expected one of: %s", fe.Param())
	case "role":
		return fmt.Sprintf("Invalid role %q", fe.Value())
	case "channel":
		return fmt.Sprintf("Invalid channel %q", fe.Value())
	case "activity_status":
		return "Expected one of: active, inactive, new"
	case "logic":
		return "Expected one of: AND, OR"
	case "safe_filter":
		return "Custom filters may not use $where, $function or $accumulator"
	case "email":
		return "Invalid email"
	case "unique":
		return "Must not contain duplicates"
	default:
		return fmt.Sprintf("Failed %s validation", fe.Tag())
	}
}

func isCollection(k reflect.Kind) bool {
	return k == reflect.Slice || k == reflect.Array || k == reflect.Map
}

// issuePath turns "PreviewRequest.criteria.roles[1]" into ["criteria","roles","1"].
func issuePath(namespace string) []string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	path := make([]string, 0, len(parts))
	for _, part := range parts {
		for {
			open := strings.Index(part, "[")
			if open < 0 {
				if part != "" {
					path = append(path, part)
				}
				break
			}
			if open > 0 {
				path = append(path, part[:open])
			}
			closing := strings.Index(part, "]")
			if closing < open {
				break
			}
			path = append(path, part[open+1:closing])
			part = part[closing+1:]
		}
	}
	return path
}

func splitPath(field string) []string {
	if field == "" {
		return []string{}
	}
	return strings.Split(field, ".")
}

// ParsePositiveInt parses a query value, returning def when it is absent or invalid.
func ParsePositiveInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
