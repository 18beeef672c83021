package editor

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	ierr "github.com/smallbiznis/console/internal/errors"
)

var identifierPattern = regexp.MustCompile(`^[a-z0-9]+([_-][a-z0-9]+)*$`)

var formValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		return keepsStoredID(fl.Parent(), id) || identifierPattern.MatchString(id)
	})
	return v
}

// keepsStoredID reports an edit that leaves the record's identifier as it
// is on the server. Records created outside the console may not follow the
// charset and must stay editable.
func keepsStoredID(parent reflect.Value, id string) bool {
	if parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	if parent.Kind() != reflect.Struct {
		return false
	}
	mode := parent.FieldByName("Mode")
	original := parent.FieldByName("OriginalID")
	if !mode.IsValid() || !original.IsValid() {
		return false
	}
	return Mode(mode.String()) == ModeEdit && original.String() != "" && original.String() == id
}

var fieldLabels = map[string]string{
	"plan_id":       "Plan ID",
	"module_id":     "Module ID",
	"name":          "Name",
	"monthly_price": "Monthly price",
	"yearly_price":  "Yearly price",
	"max_users":     "Max users",
	"currency":      "Currency",
	"mode":          "Mode",
}

func label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

func messageFor(fe validator.FieldError) string {
	name := label(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "identifier":
		return name + " may only contain lowercase letters, numbers, '-' and '_'"
	case "gte":
		return name + " must not be negative"
	case "gt":
		return name + " must be greater than zero"
	case "len", "alpha":
		return name + " must be a 3-letter ISO code"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	default:
		return name + " is invalid"
	}
}

func collect(target any, out *ierr.FieldErrors) {
	err := formValidator.Struct(target)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !ierr.As(err, &verrs) {
		out.Add("form", "invalid", err.Error())
		return
	}
	for _, fe := range verrs {
		out.Add(fe.Field(), fe.Tag(), messageFor(fe))
	}
}

// Validate checks form and returns a validation error carrying one message
// per violated field, or nil.
func Validate(form Form) error {
	var fields ierr.FieldErrors
	switch form.Kind {
	case catalogdomain.KindPlan:
		if form.Plan == nil {
			fields.Add("plan", "required", "Plan form is missing")
			break
		}
		trimmed := *form.Plan
		trimmed.PlanID = strings.TrimSpace(trimmed.PlanID)
		trimmed.Name = strings.TrimSpace(trimmed.Name)
		trimmed.Currency = strings.TrimSpace(trimmed.Currency)
		collect(trimmed, &fields)
		if trimmed.Mode == ModeEdit && trimmed.OriginalID != "" && trimmed.PlanID != trimmed.OriginalID {
			fields.Add("plan_id", "immutable", "Plan ID cannot be changed")
		}
	case catalogdomain.KindModule:
		if form.Module == nil {
			fields.Add("module", "required", "Module form is missing")
			break
		}
		trimmed := *form.Module
		trimmed.ModuleID = strings.TrimSpace(trimmed.ModuleID)
		trimmed.Name = strings.TrimSpace(trimmed.Name)
		collect(trimmed, &fields)
		if trimmed.Mode == ModeEdit && trimmed.OriginalID != "" && trimmed.ModuleID != trimmed.OriginalID {
			fields.Add("module_id", "immutable", "Module ID cannot be changed")
		}
	default:
		fields.Add("kind", "oneof", "Kind must be plan or module")
	}
	return fields.Err()
}
