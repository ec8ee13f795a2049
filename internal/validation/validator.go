// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

// Package validation wraps go-playground/validator v10 with a shared
// instance, the custom tags DiaryKeeper needs, and readable error messages.
//
//	type uploadRequest struct {
//	    Slot string `validate:"required,slotname"`
//	}
//	if err := validation.ValidateStruct(&req); err != nil {
//	    // err.Error() == "Slot must be a plain file name"
//	}
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// slotNamePattern accepts a single file name: no separators, no leading dot.
var slotNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]{0,127}$`)

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// Errors collects every FieldError for one struct.
type Errors struct {
	Fields []FieldError
}

func (ve *Errors) Error() string {
	if len(ve.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// GetValidator returns the shared validator, creating it on first use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		//nolint:errcheck // tag name is a constant and the func is non-nil
		validate.RegisterValidation("slotname", func(fl validator.FieldLevel) bool {
			return ValidSlotName(fl.Field().String())
		})
	})
	return validate
}

// ValidSlotName reports whether name can be used as a cloud slot name.
func ValidSlotName(name string) bool {
	return slotNamePattern.MatchString(name)
}

// ValidateStruct validates s and returns *Errors, or nil when s is valid.
// Compare the pointer against nil before returning it as an error.
func ValidateStruct(s interface{}) *Errors {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Errors{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := &Errors{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fe.Namespace(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return out
}

var simpleMessages = map[string]string{
	"required":    "%s is required",
	"required_if": "%s is required",
	"url":         "%s must be a valid URL",
	"slotname":    "%s must be a plain file name",
}

var paramMessages = map[string]string{
	"oneof":       "%s must be one of: %s",
	"gt":          "%s must be greater than %s",
	"gte":         "%s must be greater than or equal to %s",
	"startswith":  "%s must start with %q",
	"excludesall": "%s must not contain any of %q",
}

func translate(fe validator.FieldError) string {
	field := fe.Namespace()
	if tmpl, ok := simpleMessages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := paramMessages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}

	isString := fe.Kind().String() == "string"
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
