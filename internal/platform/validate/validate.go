// Package validate checks module Options with go-playground/validator and
// english messages keyed by the config names operators actually set
package validate

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	perr "modwatch/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// FieldError aliases validator.FieldError
type FieldError = validator.FieldError

// Svc holds a singleton validator and translator
type Svc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *Svc

	rotateUnitRe = regexp.MustCompile(`^(?i:S|M|H|D|MIDNIGHT|W[0-6])$`)
)

// Init initializes the singleton with english translations and cfg tag names
func Init() *Svc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// prefer the config key in messages so operators see what to fix
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("cfg")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerShort(v, trans, "min", "{0} must be at least {1}")
		registerShort(v, trans, "max", "{0} must be at most {1}")
		registerShort(v, trans, "gt", "{0} must be greater than {1}")

		_ = v.RegisterValidation("rotate_unit", func(fl validator.FieldLevel) bool {
			return rotateUnitRe.MatchString(fl.Field().String())
		})
		registerShort(v, trans, "rotate_unit", "{0} must be one of S, M, H, D, midnight, W0-W6")

		vSvc = &Svc{Validator: v, Translator: trans}
	})
	return vSvc
}

// Get returns the singleton, initializing on first use
func Get() *Svc { return Init() }

// Struct validates v and returns an InvalidArgument error carrying the first
// failing field and its translated message
func Struct(v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	field, msg := FieldAndMessage(err)
	e := perr.InvalidArgf("%s", msg)
	if field != "" {
		e = perr.WithField(e, field)
	}
	return e
}

// MustStruct panics with the translated message when v is invalid
// Used from FromConfig so bad configuration stops the process at boot
func MustStruct(what string, v any) {
	if err := Struct(v); err != nil {
		panic(what + ": " + err.Error())
	}
}

// FieldAndMessage returns the first field and translated message
func FieldAndMessage(err error) (field, message string) {
	if err == nil {
		return "", ""
	}
	if inv, ok := err.(*validator.InvalidValidationError); ok {
		return "", inv.Error()
	}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			return fe.Field(), fe.Translate(Get().Translator)
		}
	}
	return "", err.Error()
}

func registerShort(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}
