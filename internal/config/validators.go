package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/idelchi/gogen/pkg/validator"

	"github.com/idelchi/foldercrypt/internal/kdf"
)

// registerValidators adds the exclusive and algorithm validators with their messages
// and reports fields by their label.
func registerValidators(validator *validator.Validator) error {
	if err := validator.RegisterValidationAndTranslation(
		"exclusive",
		validateExclusive,
		"{0} is mutually exclusive",
	); err != nil {
		return fmt.Errorf("registering exclusive validation: %w", err)
	}

	if err := validator.RegisterValidationAndTranslation(
		"algorithm",
		validateAlgorithm,
		"{0} must be one of pbkdf2, argon2id",
	); err != nil {
		return fmt.Errorf("registering algorithm validation: %w", err)
	}

	validator.Validator().RegisterTagNameFunc(func(fld reflect.StructField) string {
		const splitSize = 2

		name := strings.SplitN(fld.Tag.Get("label"), ",", splitSize)[0]
		if name == "" || name == "-" {
			return fld.Name
		}

		return name
	})

	return nil
}

// validateExclusive fails when both the field and the one named in the param are set.
func validateExclusive(fl validator.FieldLevel) bool {
	field := fl.Field()
	other := reflect.Indirect(fl.Parent()).FieldByName(fl.Param())

	if !field.IsValid() || !other.IsValid() {
		return true
	}

	return field.IsZero() || other.IsZero()
}

// validateAlgorithm accepts the names kdf.ParseAlgorithm understands.
func validateAlgorithm(fl validator.FieldLevel) bool {
	_, err := kdf.ParseAlgorithm(fl.Field().String())

	return err == nil
}
