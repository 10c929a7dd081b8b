package family

import (
	"regexp"
	"slices"
	"strconv"
	"time"
)

// Validation messages shown inline next to the offending input.
const (
	msgRequired        = "Campo requerido"
	msgNameTooShort    = "Mínimo 2 caracteres"
	msgNameTooLong     = "Máximo 50 caracteres"
	msgNameCharset     = "Solo se permite letras y espacios"
	msgDNIFormat       = "DNI inválido (7 u 8 dígitos)"
	msgDNIRange        = "DNI fuera del rango válido"
	msgBirthdateFormat = "Fecha inválida"
	msgBirthdateRange  = "Fecha de nacimiento inválida"
	msgGenderInvalid   = "Género debe ser Masculino o Femenino"
	msgRelInvalid      = "La relación introducida no es válida"
)

var (
	nameRe = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑüÜ\s]+$`)
	dniRe  = regexp.MustCompile(`^[0-9]{7,8}$`)
)

const maxAgeYears = 120

// ValidateField is the pure per-field rule: it returns a Spanish message for
// an invalid value and "" when the value passes. It never returns an error
// value and has no side effects.
func ValidateField(key, value string) string {
	if value == "" {
		return msgRequired
	}

	switch key {
	case FieldName, FieldSurname:
		return validateName(value)
	case FieldDNI:
		return validateDNI(value)
	case FieldBirthdate:
		return validateBirthdate(value)
	case FieldGender:
		if !slices.Contains(Genders, value) {
			return msgGenderInvalid
		}
	case FieldRelationship:
		if !slices.Contains(Relationships, value) {
			return msgRelInvalid
		}
	}
	return ""
}

func validateName(value string) string {
	runes := []rune(value)
	if len(runes) < 2 {
		return msgNameTooShort
	}
	if len(runes) > 50 {
		return msgNameTooLong
	}
	if !nameRe.MatchString(value) {
		return msgNameCharset
	}
	return ""
}

func validateDNI(value string) string {
	if !dniRe.MatchString(value) {
		return msgDNIFormat
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1_000_000 || n > 999_999_999 {
		return msgDNIRange
	}
	return ""
}

func validateBirthdate(value string) string {
	date, err := parseBirthdate(value)
	if err != nil {
		return msgBirthdateFormat
	}
	if date.Before(time.Now().AddDate(-maxAgeYears, 0, 0)) {
		return msgBirthdateRange
	}
	return ""
}

func parseBirthdate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
