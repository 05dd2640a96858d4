package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/biodata-api/internal/models"
	appErrors "github.com/noah-isme/biodata-api/pkg/errors"
)

// BiodataValidator checks a complete biodata form across all steps and reports errors keyed
// by the draft field name.
type BiodataValidator struct {
	validate *validator.Validate
}

// NewBiodataValidator builds a validator that names fields by their json keys.
func NewBiodataValidator() *BiodataValidator {
	v := validator.New()
	v.RegisterTagNameFunc(models.JSONName)
	return &BiodataValidator{validate: v}
}

// Parse decodes and validates raw draft data. On failure it returns a VALIDATION_ERROR whose
// details map each offending field to a message naming its step.
func (b *BiodataValidator) Parse(raw json.RawMessage) (models.BiodataForm, error) {
	form, typeErrs, err := models.ParseBiodataForm(raw)
	if err != nil {
		return form, appErrors.WithDetails(appErrors.ErrValidation, "biodata must be a JSON object", map[string]string{
			"draftData": "must be a JSON object",
		})
	}
	return form, b.Check(form, typeErrs)
}

// Check validates an already decoded form.
func (b *BiodataValidator) Check(form models.BiodataForm, typeErrs []*models.FieldTypeError) error {
	details := map[string]string{}

	if err := b.validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate biodata")
		}
		for _, fe := range fieldErrs {
			details[fe.Field()] = fieldMessage(fe)
		}
	}
	for _, key := range form.Family.MissingSiblings() {
		details[key] = "is required"
	}
	for _, te := range typeErrs {
		if te.Field == "" {
			continue
		}
		details[te.Field] = typeMessage(te.Expected)
	}

	if len(details) == 0 {
		return nil
	}

	steps := map[int]bool{}
	for field, msg := range details {
		step := models.FieldStep(field)
		if step > 0 {
			steps[step] = true
			details[field] = fmt.Sprintf("%s (step %d)", msg, step)
		}
	}
	return appErrors.WithDetails(appErrors.ErrValidation, validationSummary(len(details), steps), details)
}

func validationSummary(fields int, steps map[int]bool) string {
	ordered := make([]int, 0, len(steps))
	for step := range steps {
		ordered = append(ordered, step)
	}
	sort.Ints(ordered)
	labels := make([]string, len(ordered))
	for i, step := range ordered {
		labels[i] = strconv.Itoa(step)
	}

	noun := "fields need"
	if fields == 1 {
		noun = "field needs"
	}
	if len(labels) == 0 {
		return fmt.Sprintf("%d %s attention", fields, noun)
	}
	return fmt.Sprintf("%d %s attention in step %s", fields, noun, strings.Join(labels, ", "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "email":
		return "must be a valid email address"
	case "eq":
		return "must be accepted"
	case "gtefield":
		return "must not be less than " + lowerFirst(fe.Param())
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

func typeMessage(expected string) string {
	switch {
	case strings.HasPrefix(expected, "int"), strings.HasPrefix(expected, "float"):
		return "must be a number"
	case expected == "bool":
		return "must be true or false"
	case expected == "string":
		return "must be text"
	}
	return "has an invalid type"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
