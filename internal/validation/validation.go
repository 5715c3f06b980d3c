package validation

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	once       sync.Once
	validate   *validator.Validate
	translator ut.Translator
)

// Get returns the shared validator and its english translator.
// validator.Validate caches struct metadata and is safe for concurrent use.
func Get() (*validator.Validate, ut.Translator) {
	once.Do(func() {
		english := en.New()
		uni := ut.New(english, english)
		translator, _ = uni.GetTranslator("en")

		validate = validator.New()
		_ = enTranslations.RegisterDefaultTranslations(validate, translator)
	})

	return validate, translator
}

// Struct validates s and returns the translated messages, or nil when valid
func Struct(s interface{}) []string {
	v, trans := Get()
	return TranslateError(v.Struct(s), trans)
}

// TranslateError flattens validator errors into readable messages
func TranslateError(err error, trans ut.Translator) (errs []string) {
	if err == nil {
		return nil
	}

	validationErrors := validator.ValidationErrors{}

	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			errs = append(errs, e.Translate(trans))
		}
		return errs
	}

	return []string{err.Error()}
}

// Join renders messages on a single line
func Join(errs []string) string {
	return strings.Join(errs, "; ")
}
