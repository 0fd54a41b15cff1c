package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validator.Validate caches struct metadata and is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("resourceid", func(fl validator.FieldLevel) bool {
		return CheckResourceID(fl.Field().String()) == nil
	})
	return v
}

// validateStruct runs tag validation and converts failures into a
// ValidationError listing each offending field.
func validateStruct(value any, resourceID string) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Kind: KindValidation, ResourceID: resourceID, Message: "invalid input", Err: err}
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeFieldError(fe))
	}
	sort.Strings(problems)
	return &Error{Kind: KindValidation, ResourceID: resourceID, Message: strings.Join(problems, "; ")}
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Namespace())
	if idx := strings.IndexByte(field, '.'); idx >= 0 {
		field = field[idx+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s exceeds %s characters", field, fe.Param())
	case "resourceid":
		if err := CheckResourceID(fmt.Sprint(fe.Value())); err != nil {
			var typed *Error
			if errors.As(err, &typed) {
				return field + ": " + typed.Message
			}
		}
		return field + " is not a valid resource id"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// prepareResource normalizes user input ahead of validation.
func prepareResource(r Resource) Resource {
	r.ID = strings.TrimSpace(r.ID)
	r.Title = strings.TrimSpace(r.Title)
	r.Type = ResourceType(strings.ToLower(strings.TrimSpace(string(r.Type))))
	if r.Condition == "" {
		r.Condition = ConditionNew
	} else if parsed, err := ParseCondition(string(r.Condition)); err == nil {
		r.Condition = parsed
	}
	r.Classification = r.Classification.normalized()
	return r
}

func prepareBorrower(b BorrowerRef) BorrowerRef {
	b.ID = strings.TrimSpace(b.ID)
	b.Kind = BorrowerKind(strings.ToLower(strings.TrimSpace(string(b.Kind))))
	return b
}
