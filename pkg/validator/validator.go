package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslation "github.com/go-playground/validator/v10/translations/en"
)

// Rule registers a custom validation tag.
type Rule struct {
	Tag     string
	Message string
	Func    validator.Func
}

// StructValidator validates tagged structs and renders readable messages.
type StructValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New builds a validator with English messages and the given custom rules.
func New(rules ...Rule) (*StructValidator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLocale := en.New()
	translator, found := ut.New(enLocale, enLocale).GetTranslator("en")
	if !found {
		return nil, fmt.Errorf("en translator was not found")
	}
	if err := enTranslation.RegisterDefaultTranslations(validate, translator); err != nil {
		return nil, fmt.Errorf("translator was not registered: %w", err)
	}

	for _, rule := range rules {
		if err := validate.RegisterValidation(rule.Tag, rule.Func); err != nil {
			return nil, fmt.Errorf("register rule %s: %w", rule.Tag, err)
		}
		if rule.Message != "" {
			if err := registerMessage(validate, translator, rule.Tag, rule.Message); err != nil {
				return nil, err
			}
		}
	}

	// Report the configuration key rather than the Go field name.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &StructValidator{validate: validate, translator: translator}, nil
}

// Struct validates value and joins every failed field into one error.
func (v *StructValidator) Struct(value any) error {
	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	errs := make([]error, 0, len(validationErrs))
	for _, e := range validationErrs {
		errs = append(errs, fmt.Errorf("%s: %s", processNamespace(e.Namespace()), e.Translate(v.translator)))
	}
	return errors.Join(errs...)
}

func registerMessage(validate *validator.Validate, translator ut.Translator, tag, message string) error {
	return validate.RegisterTranslation(tag, translator,
		func(t ut.Translator) error {
			return t.Add(tag, message, true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(tag, fe.Field(), fmt.Sprintf("%v", fe.Value()))
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}

// processNamespace drops the root struct name from a field namespace.
func processNamespace(namespace string) string {
	parts := strings.SplitN(namespace, ".", 2)
	if len(parts) < 2 {
		return namespace
	}
	return parts[1]
}
