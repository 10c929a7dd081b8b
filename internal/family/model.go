// Package family implements the dependent-profile form machine: field
// edits with inline validation, edit-vs-create mode, and the save
// lifecycle against the family backend.
package family

// Member is a dependent profile attached to an account holder. DNI uniquely
// identifies a person system-wide; the backend enforces that, not this layer.
type Member struct {
	ID           string `json:"id"`
	HolderID     string `json:"holderId"`
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	Birthdate    string `json:"birthdate"`
	Gender       string `json:"gender"`
	DNI          string `json:"dni"`
	Relationship string `json:"relationship"`
}

// CreateRequest is the payload for creating or updating a member.
type CreateRequest struct {
	HolderID     string `json:"holderId"`
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	Birthdate    string `json:"birthdate"`
	Gender       string `json:"gender"`
	DNI          string `json:"dni"`
	Relationship string `json:"relationship"`
}

// Form field keys.
const (
	FieldName         = "name"
	FieldSurname      = "surname"
	FieldDNI          = "dni"
	FieldGender       = "gender"
	FieldBirthdate    = "birthdate"
	FieldRelationship = "relationship"
)

// FieldKeys lists the six form fields in display order.
var FieldKeys = []string{
	FieldName,
	FieldSurname,
	FieldDNI,
	FieldGender,
	FieldBirthdate,
	FieldRelationship,
}

// Genders is the accepted gender vocabulary.
var Genders = []string{"MALE", "FEMALE"}

// Relationships is the fixed relationship vocabulary.
var Relationships = []string{
	"Nieto", "Nieta",
	"Hijo", "Hija",
	"Madre", "Padre",
	"Hermano", "Hermana",
	"Abuelo", "Abuela",
}

// FormValues holds the six editable fields of the member form.
type FormValues struct {
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	DNI          string `json:"dni"`
	Gender       string `json:"gender"`
	Birthdate    string `json:"birthdate"`
	Relationship string `json:"relationship"`
}

// Field returns the value stored under key, or "" for unknown keys.
func (f FormValues) Field(key string) string {
	switch key {
	case FieldName:
		return f.Name
	case FieldSurname:
		return f.Surname
	case FieldDNI:
		return f.DNI
	case FieldGender:
		return f.Gender
	case FieldBirthdate:
		return f.Birthdate
	case FieldRelationship:
		return f.Relationship
	default:
		return ""
	}
}

// SetField assigns value under key. Unknown keys are ignored.
func (f *FormValues) SetField(key, value string) {
	switch key {
	case FieldName:
		f.Name = value
	case FieldSurname:
		f.Surname = value
	case FieldDNI:
		f.DNI = value
	case FieldGender:
		f.Gender = value
	case FieldBirthdate:
		f.Birthdate = value
	case FieldRelationship:
		f.Relationship = value
	}
}

// Complete reports whether all six fields are non-empty.
func (f FormValues) Complete() bool {
	for _, key := range FieldKeys {
		if f.Field(key) == "" {
			return false
		}
	}
	return true
}

func formFromMember(m Member) FormValues {
	return FormValues{
		Name:         m.Name,
		Surname:      m.Surname,
		DNI:          m.DNI,
		Gender:       m.Gender,
		Birthdate:    m.Birthdate,
		Relationship: m.Relationship,
	}
}
