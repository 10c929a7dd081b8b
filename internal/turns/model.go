// Package turns holds the appointment ("turno") domain: doctors, turns,
// specialty options, the backend service adapter, and the doctor
// availability checker.
package turns

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Doctor is a bookable professional.
type Doctor struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Surname   string   `json:"surname"`
	Specialty string   `json:"specialty"`
	Score     *float64 `json:"score,omitempty"`
}

// Status is the lifecycle state of a turn.
type Status string

const (
	StatusScheduled Status = "PROGRAMADO"
	StatusCompleted Status = "COMPLETADO"
	StatusCancelled Status = "CANCELADO"
	StatusNoShow    Status = "AUSENTE"
)

// Turn is a booked appointment.
type Turn struct {
	ID          string `json:"id"`
	DoctorID    string `json:"doctorId"`
	PatientID   string `json:"patientId"`
	DoctorName  string `json:"doctorName,omitempty"`
	Specialty   string `json:"specialty,omitempty"`
	ScheduledAt string `json:"scheduledAt"`
	Status      Status `json:"status"`
	Motive      string `json:"motive,omitempty"`
}

// CreateTurnRequest is the payload for booking a turn.
type CreateTurnRequest struct {
	DoctorID    string `json:"doctorId"`
	PatientID   string `json:"patientId"`
	ScheduledAt string `json:"scheduledAt"`
	Motive      string `json:"motive,omitempty"`
}

// ModifyRequest asks to reschedule an existing turn.
type ModifyRequest struct {
	TurnID         string `json:"turnId"`
	NewScheduledAt string `json:"newScheduledAt"`
}

// ModifyRequestRecord is the stored reschedule request.
type ModifyRequestRecord struct {
	ID             string `json:"id"`
	TurnID         string `json:"turnId"`
	NewScheduledAt string `json:"newScheduledAt"`
	Status         string `json:"status"`
}

// SpecialtyOption is one entry of the specialty selector.
type SpecialtyOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// HealthCertificateMotive is the wire sentinel for a certificate visit.
// Consumers match on it to render the visit as "Certificado de apto físico".
const HealthCertificateMotive = "HEALTH CERTIFICATE"

// certificateSpecialties are the specialties for which the
// health-certificate option is offered.
var certificateSpecialties = map[string]struct{}{
	"general": {},
}

// AllowsHealthCertificate reports whether the certificate option exists for
// a specialty.
func AllowsHealthCertificate(specialty string) bool {
	_, ok := certificateSpecialties[NormalizeSpecialtyKey(specialty)]
	return ok
}

// NormalizeSpecialtyKey lowercases and trims a specialty for dedupe.
func NormalizeSpecialtyKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// FormatSpecialtyLabel renders a specialty with a leading capital.
func FormatSpecialtyLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	runes := []rune(trimmed)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}

// BuildSpecialtyOptions derives the deduplicated, Spanish-collated
// specialty selector entries from a doctor list.
func BuildSpecialtyOptions(doctors []Doctor) []SpecialtyOption {
	seen := make(map[string]struct{})
	options := make([]SpecialtyOption, 0, len(doctors))

	for _, doctor := range doctors {
		key := NormalizeSpecialtyKey(doctor.Specialty)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		options = append(options, SpecialtyOption{
			Value: doctor.Specialty,
			Label: FormatSpecialtyLabel(doctor.Specialty),
		})
	}

	c := collate.New(language.Spanish)
	sort.Slice(options, func(i, j int) bool {
		return c.CompareString(options[i].Label, options[j].Label) < 0
	})
	return options
}

// FilterAvailable keeps only doctors marked open in the availability map.
func FilterAvailable(doctors []Doctor, availability map[string]bool) []Doctor {
	filtered := make([]Doctor, 0, len(doctors))
	for _, doctor := range doctors {
		if availability[doctor.ID] {
			filtered = append(filtered, doctor)
		}
	}
	return filtered
}

// FilterByStatus keeps only turns in the given status; an empty status
// keeps everything.
func FilterByStatus(all []Turn, status Status) []Turn {
	if status == "" {
		return all
	}
	filtered := make([]Turn, 0, len(all))
	for _, turn := range all {
		if turn.Status == status {
			filtered = append(filtered, turn)
		}
	}
	return filtered
}
