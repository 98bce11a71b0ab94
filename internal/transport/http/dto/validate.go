package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/domain"
)

var (
	validate *validator.Validate
	trans    ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// report json names, not Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	locale := en.New()
	trans, _ = ut.New(locale, locale).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)
}

// validateStruct maps the first failing field onto a domain validation error.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return domain.ErrInvalidField("body", err.Error())
	}

	fe := ves[0]
	if fe.Tag() == "required" {
		return domain.ErrMissingField(fe.Field())
	}
	return domain.ErrInvalidField(fe.Field(), fe.Translate(trans))
}
