package batch

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cuongbtq/grow-sync/internal/domain"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateJobs checks batch size and every job's fields, collecting all issues
func (o *Orchestrator) validateJobs(jobs []domain.Job) error {
	if len(jobs) == 0 {
		return domain.NewValidationError("jobs: at least 1 job is required")
	}
	if len(jobs) > o.cfg.MaxJobs {
		return domain.NewValidationError(fmt.Sprintf("jobs: at most %d jobs are allowed, got %d", o.cfg.MaxJobs, len(jobs)))
	}

	var issues []string
	for i, job := range jobs {
		err := o.validate.Struct(job)
		if err == nil {
			continue
		}

		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			issues = append(issues, fmt.Sprintf("jobs[%d]: %s", i, err.Error()))
			continue
		}
		for _, fe := range fieldErrs {
			issues = append(issues, fmt.Sprintf("jobs[%d].%s: %s", i, fieldPath(fe), describe(fe)))
		}
	}

	if len(issues) > 0 {
		return domain.NewValidationError(issues...)
	}
	return nil
}

// fieldPath drops the struct name from the namespace, keeping json names and indexes
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must contain at least " + fe.Param() + " item(s)"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
