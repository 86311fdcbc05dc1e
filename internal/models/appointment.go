package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusProgramada   AppointmentStatus = "programada"
	StatusEnAtencion   AppointmentStatus = "en_atencion"
	StatusFinalizada   AppointmentStatus = "finalizada"
	StatusCancelada    AppointmentStatus = "cancelada"
	StatusReprogramada AppointmentStatus = "reprogramada"
	StatusNoAsistio    AppointmentStatus = "no_asistio"
)

// ActiveStatuses are the statuses that occupy a slot. An appointment in
// one of these states blocks any other booking for the same patient or
// doctor at the same time.
var ActiveStatuses = []AppointmentStatus{StatusProgramada, StatusEnAtencion}

// AppointmentType distinguishes in-person visits from video consultations
type AppointmentType string

const (
	TypePresencial AppointmentType = "presencial"
	TypeVirtual    AppointmentType = "virtual"
)

// Appointment represents a scheduled medical appointment
type Appointment struct {
	BaseModel
	PatientID   string            `gorm:"size:36;index:idx_patient_date" json:"patientId"`
	DoctorID    string            `gorm:"size:36;index:idx_doctor_date" json:"doctorId"`
	Date        time.Time         `gorm:"index:idx_patient_date;index:idx_doctor_date" json:"date"`
	Status      AppointmentStatus `gorm:"size:20;default:'programada'" json:"status"`
	Type        AppointmentType   `gorm:"size:20;default:'presencial'" json:"type"`
	Location    string            `gorm:"size:255" json:"location,omitempty"`
	Room        string            `gorm:"size:50" json:"room,omitempty"`
	MeetingLink string            `gorm:"size:255" json:"meetingLink,omitempty"`
	Notes       string            `gorm:"type:text" json:"notes"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor  User `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

// IsActive reports whether the appointment currently occupies its slot.
func (a *Appointment) IsActive() bool {
	return a.Status == StatusProgramada || a.Status == StatusEnAtencion
}
