package domain

import (
	"errors"
	"strings"
	"time"
)

// ClinicalRecord is written exactly once, when a doctor saves a
// prescription during an active call. Never mutated or deleted.
// Doctor and patient emails are denormalized identifiers, not enforced
// foreign keys.
type ClinicalRecord struct {
	ID           int64  `json:"id"`
	Date         string `json:"date"`
	DoctorName   string `json:"doctorName"`
	DoctorEmail  string `json:"doctorEmail"`
	PatientName  string `json:"patientName"`
	PatientEmail string `json:"patientEmail"`
	Prescription string `json:"prescription"`
}

func NewClinicalRecord(doctor User, patient Counterpart, prescription string, now time.Time) (ClinicalRecord, error) {
	prescription = strings.TrimSpace(prescription)
	switch {
	case prescription == "":
		return ClinicalRecord{}, errors.New("prescription text is required")
	case doctor.Role != RoleDoctor:
		return ClinicalRecord{}, errors.New("only doctors write prescriptions")
	case patient.Email == "":
		return ClinicalRecord{}, errors.New("patient email is required")
	}
	return ClinicalRecord{
		ID:           now.UnixMilli(),
		Date:         now.UTC().Format(time.RFC3339),
		DoctorName:   doctor.Name,
		DoctorEmail:  doctor.Email,
		PatientName:  patient.Name,
		PatientEmail: strings.ToLower(patient.Email),
		Prescription: prescription,
	}, nil
}

// LivePrescription is the fire-and-forget notification published when a
// record is appended, keyed by patient identity. Delivery is best
// effort; the record itself stays durably queryable.
type LivePrescription struct {
	PatientEmail string `json:"patientEmail"`
	Text         string `json:"text"`
	SentAt       int64  `json:"sentAt"`
}
