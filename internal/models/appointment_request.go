package models

import (
	"time"

	"gorm.io/gorm"
)

// RequestStatus represents the status of an appointment request
type RequestStatus string

const (
	RequestPendiente RequestStatus = "pendiente"
	RequestAceptada  RequestStatus = "aceptada"
	RequestRechazada RequestStatus = "rechazada"
)

// IsTerminal reports whether no further transition is permitted.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestAceptada || s == RequestRechazada
}

// AppointmentRequest is a patient's pre-booking request. A patient may
// hold at most one pending request at a time; a doctor or admin resolves
// it exactly once to aceptada or rechazada, after which the actual
// appointment is booked separately. Cancelling a pending request is a
// soft delete.
type AppointmentRequest struct {
	BaseModel
	PatientID        string          `gorm:"size:36;index" json:"patientId"`
	Message          string          `gorm:"type:text;not null" json:"message"`
	PreferredDate    *time.Time      `json:"preferredDate,omitempty"`
	Specialty        string          `gorm:"size:100" json:"specialty,omitempty"`
	Type             AppointmentType `gorm:"size:20;default:'presencial'" json:"type"`
	Status           RequestStatus   `gorm:"size:20;default:'pendiente'" json:"status"`
	RejectionReason  string          `gorm:"size:255" json:"rejectionReason,omitempty"`
	AssignedDoctorID string          `gorm:"size:36;index" json:"assignedDoctorId,omitempty"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relations
	Patient        User `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	AssignedDoctor User `gorm:"foreignKey:AssignedDoctorID" json:"assignedDoctor,omitempty"`
}
