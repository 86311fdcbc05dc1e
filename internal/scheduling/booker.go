package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinica-server/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSlotTaken means an active appointment for the same patient or
	// doctor already exists at the requested time.
	ErrSlotTaken = errors.New("an active appointment already exists for this time slot")

	// ErrPriorPending means the patient has an earlier appointment that
	// is still programada or en_atencion and must be resolved before a
	// new one can be booked.
	ErrPriorPending = errors.New("patient has an earlier pending appointment that must be resolved first")

	// ErrMissingLocation means an in-person booking lacks location or room.
	ErrMissingLocation = errors.New("location and room are required for presencial appointments")

	// ErrInvalidTransition means the requested status change is not a
	// permitted edge of the appointment lifecycle.
	ErrInvalidTransition = errors.New("status transition is not allowed")
)

// BookingParams carries everything needed to book an appointment.
type BookingParams struct {
	PatientID string
	DoctorID  string
	Date      time.Time
	Type      models.AppointmentType
	Status    models.AppointmentStatus
	Notes     string
	Location  string
	Room      string
}

// Booker creates appointments after checking for conflicting bookings.
// The conflict queries and the insert run inside a single transaction
// with locking reads so two concurrent requests for the same slot cannot
// both succeed.
type Booker struct {
	DB       *gorm.DB
	LinkBase string
}

// NewBooker creates a Booker. linkBase is the URL prefix for generated
// meeting links.
func NewBooker(db *gorm.DB, linkBase string) *Booker {
	return &Booker{DB: db, LinkBase: linkBase}
}

// MeetingLink derives the video consultation URL for a doctor/patient
// pair. The link is stable: booking the same pair again yields the same
// room.
func MeetingLink(base, doctorID, patientID string) string {
	return fmt.Sprintf("%s/ConsultaMedica-%s-%s", strings.TrimRight(base, "/"), doctorID, patientID)
}

// Validate checks the intrinsic requirements of the booking before any
// database work.
func (p *BookingParams) Validate() error {
	if p.Type == models.TypePresencial && (p.Location == "" || p.Room == "") {
		return ErrMissingLocation
	}
	if p.Status != "" && !ValidStatus(p.Status) {
		return fmt.Errorf("unknown appointment status %q", p.Status)
	}
	return nil
}

// Book validates the request, checks for conflicts and persists the new
// appointment. Virtual bookings get a derived meeting link and ignore
// any supplied location/room; presencial bookings keep them.
func (b *Booker) Book(ctx context.Context, p BookingParams) (*models.Appointment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		PatientID: p.PatientID,
		DoctorID:  p.DoctorID,
		Date:      p.Date,
		Status:    p.Status,
		Type:      p.Type,
		Notes:     p.Notes,
	}
	if appt.Status == "" {
		appt.Status = models.StatusProgramada
	}
	if p.Type == models.TypeVirtual {
		appt.MeetingLink = MeetingLink(b.LinkBase, p.DoctorID, p.PatientID)
	} else {
		appt.Location = p.Location
		appt.Room = p.Room
	}

	err := b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkConflict(tx, p.PatientID, p.DoctorID, p.Date, ""); err != nil {
			return err
		}
		return tx.Create(appt).Error
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// checkConflict runs the two conflict queries with locking reads so the
// surrounding transaction serializes against concurrent bookings.
// excludeID keeps an existing appointment from colliding with itself
// when it is being rescheduled or re-activated.
func checkConflict(tx *gorm.DB, patientID, doctorID string, date time.Time, excludeID string) error {
	var occupied int64
	err := tx.Model(&models.Appointment{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id <> ? AND date = ? AND status IN ? AND (patient_id = ? OR doctor_id = ?)",
			excludeID, date, models.ActiveStatuses, patientID, doctorID).
		Count(&occupied).Error
	if err != nil {
		return err
	}
	if occupied > 0 {
		return ErrSlotTaken
	}

	var pending int64
	err = tx.Model(&models.Appointment{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id <> ? AND patient_id = ? AND status IN ? AND date < ?",
			excludeID, patientID, models.ActiveStatuses, date).
		Count(&pending).Error
	if err != nil {
		return err
	}
	if pending > 0 {
		return ErrPriorPending
	}
	return nil
}

// Reschedule moves the appointment to a new date and marks it
// reprogramada. The new slot is conflict-checked like a fresh booking.
func (b *Booker) Reschedule(ctx context.Context, appt *models.Appointment, date time.Time) error {
	if !CanTransition(appt.Status, models.StatusReprogramada) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, models.StatusReprogramada)
	}
	return b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkConflict(tx, appt.PatientID, appt.DoctorID, date, appt.ID); err != nil {
			return err
		}
		appt.Date = date
		appt.Status = models.StatusReprogramada
		return tx.Save(appt).Error
	})
}

// Transition applies a status change to the appointment, enforcing the
// lifecycle edges. A transition that re-enters the active state runs the
// conflict queries again: the slot was not held while the appointment
// sat in a non-active status. The caller is responsible for
// authorization.
func (b *Booker) Transition(ctx context.Context, appt *models.Appointment, to models.AppointmentStatus) error {
	if !ValidStatus(to) {
		return fmt.Errorf("unknown appointment status %q", to)
	}
	if !CanTransition(appt.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	if to == models.StatusProgramada && !appt.IsActive() {
		return b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := checkConflict(tx, appt.PatientID, appt.DoctorID, appt.Date, appt.ID); err != nil {
				return err
			}
			appt.Status = to
			return tx.Save(appt).Error
		})
	}

	appt.Status = to
	return b.DB.WithContext(ctx).Save(appt).Error
}

// FinishAllByPatient marks every active appointment of the patient as
// finalizada in one batched update and returns the number of rows
// changed.
func (b *Booker) FinishAllByPatient(ctx context.Context, patientID string) (int64, error) {
	res := b.DB.WithContext(ctx).Model(&models.Appointment{}).
		Where("patient_id = ? AND status IN ?", patientID, models.ActiveStatuses).
		Update("status", models.StatusFinalizada)
	return res.RowsAffected, res.Error
}
