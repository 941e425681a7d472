package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	rfcPattern    = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}$`)
	postalPattern = regexp.MustCompile(`^[0-9]{5}$`)
	phonePattern  = regexp.MustCompile(`^[0-9]{10}$`)
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared instance with the storefront's custom tags:
// rfc_length, rfc, postal_code and phone_mx. Field names in errors are the
// json names.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		mustRegister(v, "rfc_length", validRFCLength)
		mustRegister(v, "rfc", validRFC)
		mustRegister(v, "postal_code", validPostalCode)
		mustRegister(v, "phone_mx", validPhone)
		instance = v
	})
	return instance
}

func Struct(s interface{}) error {
	return Validator().Struct(s)
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

// NormalizeRFC upper-cases and strips blanks and dashes.
func NormalizeRFC(rfc string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(rfc))
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	return strings.ReplaceAll(cleaned, "-", "")
}

func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validRFCLength(fl validator.FieldLevel) bool {
	n := len([]rune(NormalizeRFC(fl.Field().String())))
	return n == 12 || n == 13
}

func validRFC(fl validator.FieldLevel) bool {
	return rfcPattern.MatchString(NormalizeRFC(fl.Field().String()))
}

func validPostalCode(fl validator.FieldLevel) bool {
	return postalPattern.MatchString(strings.TrimSpace(fl.Field().String()))
}

func validPhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(NormalizePhone(fl.Field().String()))
}

// Fields converts validation errors into a field → message map suitable for
// inline form display. Non validation errors yield nil.
func Fields(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := lowerCamel(fieldError.Field())
		if _, exists := details[field]; exists {
			continue
		}
		details[field] = Message(fieldError.Tag(), fieldError.Param())
	}
	return details
}

func Message(tag, param string) string {
	switch tag {
	case "required":
		return "Este campo es obligatorio"
	case "email":
		return "Correo electrónico inválido"
	case "rfc_length":
		return "El RFC debe tener 12 o 13 caracteres"
	case "rfc":
		return "Formato de RFC inválido"
	case "postal_code", "cp":
		return "El código postal debe tener 5 dígitos"
	case "phone_mx":
		return "El teléfono debe tener 10 dígitos"
	case "min", "gte", "gt":
		return "El valor es demasiado corto o pequeño (mínimo " + param + ")"
	case "max", "lte", "lt":
		return "El valor es demasiado largo o grande (máximo " + param + ")"
	default:
		return "Valor inválido"
	}
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
